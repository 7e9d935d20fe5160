package body

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/socialmark/internal/model"
)

// TestParsePostDataForm tests form-encoded bodies with and without headers.
func TestParsePostDataForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "plus decodes to space",
			text: "name=a+b&x=1",
			want: map[string]string{"name": "a b", "x": "1"},
		},
		{
			name: "percent escapes are decoded",
			text: "url=https%3A%2F%2Fexample.com",
			want: map[string]string{"url": "https://example.com"},
		},
		{
			name: "encoded plus stays a plus sign",
			text: "text=q%3Da%2Bb&sum=1%2B1+%3D+2",
			want: map[string]string{"text": "q=a+b", "sum": "1+1 = 2"},
		},
		{
			name: "encoded plus stays a plus sign with malformed escapes",
			text: "p=100%&q=a%2Bb+c",
			want: map[string]string{"p": "100%", "q": "a+b c"},
		},
		{
			name: "last duplicate wins",
			text: "a=1&a=2&a=3",
			want: map[string]string{"a": "3"},
		},
		{
			name: "value keeps everything after the first equals sign",
			text: "q=a=b=c",
			want: map[string]string{"q": "a=b=c"},
		},
		{
			name: "pair without equals sign maps to empty value",
			text: "flag&x=1",
			want: map[string]string{"flag": "", "x": "1"},
		},
		{
			name: "empty pairs are skipped",
			text: "a=1&&b=2&",
			want: map[string]string{"a": "1", "b": "2"},
		},
		{
			name: "malformed escapes stay literal",
			text: "p=100%&q=%zz+x",
			want: map[string]string{"p": "100%", "q": "%zz x"},
		},
		{
			name: "form header block is stripped",
			text: "Content-Type: application/x-www-form-urlencoded\r\nContent-Length: 31\r\n\r\nurl=https%3A%2F%2Fexample.com",
			want: map[string]string{"url": "https://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePostData(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != model.BodyForm {
				t.Fatalf("expected form body, got %s", got.Kind)
			}
			if !reflect.DeepEqual(got.Form, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Form)
			}
		})
	}
}

// TestParsePostDataJSON tests bodies declared as JSON.
func TestParsePostDataJSON(t *testing.T) {
	t.Parallel()

	t.Run("json after header block", func(t *testing.T) {
		t.Parallel()

		got, err := ParsePostData("Content-Type: application/json\r\n\r\n{\"a\":1}")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != model.BodyJSON {
			t.Fatalf("expected json body, got %s", got.Kind)
		}
		want := map[string]any{"a": float64(1)}
		if !reflect.DeepEqual(got.JSON, want) {
			t.Errorf("expected %v, got %v", want, got.JSON)
		}
	})

	t.Run("json remainder keeps later blank lines", func(t *testing.T) {
		t.Parallel()

		got, err := ParsePostData("Content-Type: application/json\r\n\r\n{\"url\":\r\n\r\n\"https://example.com\"}")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, _ := got.Field("url"); v != "https://example.com" {
			t.Errorf("unexpected url field %q", v)
		}
	})

	t.Run("malformed json is a parse failure", func(t *testing.T) {
		t.Parallel()

		_, err := ParsePostData("Content-Type: application/json\r\n\r\n{\"a\":")
		if !errors.Is(err, ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})

	t.Run("missing separator is a parse failure", func(t *testing.T) {
		t.Parallel()

		_, err := ParsePostData("Content-Type: application/json {\"a\":1}")
		if !errors.Is(err, ErrMissingSeparator) {
			t.Errorf("expected ErrMissingSeparator, got %v", err)
		}
	})

	t.Run("json marker wins over form marker", func(t *testing.T) {
		t.Parallel()

		text := "Content-Type: application/x-www-form-urlencoded\r\nContent-Type: application/json\r\n\r\n[1,2]"
		got, err := ParsePostData(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != model.BodyJSON {
			t.Errorf("expected json body, got %s", got.Kind)
		}
	})
}

// TestParsePostDataEmpty tests the neutral result for empty text.
func TestParsePostDataEmpty(t *testing.T) {
	t.Parallel()

	got, err := ParsePostData("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != model.BodyEmpty {
		t.Errorf("expected empty body, got %s", got.Kind)
	}
	if len(got.Form) != 0 {
		t.Errorf("expected empty mapping, got %v", got.Form)
	}
	if _, ok := got.Field("url"); ok {
		t.Error("expected no fields on empty body")
	}
}
