package targets

// File is the top-level structure of a targets YAML file.
//
//	targets:
//	  - id: example
//	    url: https://example.com
//	  - url: https://status.example.org
//	    disabled: true
type File struct {
	Targets []Entry `yaml:"targets"`
}

// Entry is one monitored URL. ID may be omitted; a stable one is derived
// from the URL.
type Entry struct {
	ID       string `yaml:"id,omitempty"`
	URL      string `yaml:"url"`
	Disabled bool   `yaml:"disabled,omitempty"`
}
