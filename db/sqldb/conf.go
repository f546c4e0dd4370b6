package sqldb

type Conf struct {
	Type   string            `json:"type" yaml:"type"` // mysql, pgsql, sqlite
	Host   string            `json:"host" yaml:"host"`
	Port   int               `json:"port" yaml:"port"` // 0 = driver default
	User   string            `json:"user" yaml:"user"`
	PW     string            `json:"pw" yaml:"pw"`
	PWEnc  string            `json:"pw_enc" yaml:"pw_enc"` // Encrypted PW. Decrypted into PW by conf.Core
	DB     string            `json:"db" yaml:"db"`         // Database name. File path for sqlite
	TZ     string            `json:"tz" yaml:"tz"`         // Connection Timezone
	DSN    string            `json:"dsn" yaml:"dsn"`       // To Overwrite Default DSN
	Params map[string]string `json:"params" yaml:"params"` // Extra driver parameters
}

// Clone returns a deep copy so sessions can alter credentials locally.
func (c *Conf) Clone() *Conf {
	cp := *c
	if c.Params != nil {
		cp.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}
