package config

// File represents the structure of the .socialmark configuration file.
// Pointer fields distinguish "not set" from the zero value so that a file
// can turn a default off (e.g. serialize_writes: false).
type File struct {
	ListenAddr      *string `yaml:"listen_addr,omitempty"`
	ProxyAddr       *string `yaml:"proxy_addr,omitempty"`
	UpstreamSOCKS5  *string `yaml:"upstream_socks5,omitempty"`
	DBDir           *string `yaml:"db_dir,omitempty"`
	Concurrency     *int    `yaml:"concurrency,omitempty"`
	SerializeWrites *bool   `yaml:"serialize_writes,omitempty"`
	MaxBodySize     *int64  `yaml:"max_body_size,omitempty"`
	DumpRequests    *bool   `yaml:"dump_requests,omitempty"`
	RecordFile      *string `yaml:"record_file,omitempty"`
	Verbose         *bool   `yaml:"verbose,omitempty"`
	LogFormat       *string `yaml:"log_format,omitempty"`
}

// Apply copies every value set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	setIf(&cfg.ListenAddr, f.ListenAddr)
	setIf(&cfg.ProxyAddr, f.ProxyAddr)
	setIf(&cfg.UpstreamSOCKS5, f.UpstreamSOCKS5)
	setIf(&cfg.DBDir, f.DBDir)
	setIf(&cfg.Concurrency, f.Concurrency)
	setIf(&cfg.SerializeWrites, f.SerializeWrites)
	setIf(&cfg.MaxBodySize, f.MaxBodySize)
	setIf(&cfg.DumpRequests, f.DumpRequests)
	setIf(&cfg.RecordFile, f.RecordFile)
	setIf(&cfg.Verbose, f.Verbose)
	setIf(&cfg.LogFormat, f.LogFormat)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
