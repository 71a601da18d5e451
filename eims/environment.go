package eims

import (
	"strings"

	"github.com/alapierre/go-eims-client/eims/util"
	"github.com/go-faster/errors"
)

// Environment is the registry base URL. Prod is the public MoR endpoint,
// any other value must be an explicit http(s) URL (test gateways, fakes).
type Environment string

const Prod Environment = "http://core.mor.gov.et"

func (e Environment) BaseURL() string {
	if e == "" {
		return string(Prod)
	}
	return strings.TrimRight(string(e), "/")
}

// URL joins the base URL and an endpoint path.
func (e Environment) URL(path string) string {
	return e.BaseURL() + "/" + strings.TrimLeft(path, "/")
}

func (e Environment) String() string {
	return e.BaseURL()
}

func (e *Environment) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	switch strings.ToLower(v) {
	case "", "prod", "production":
		*e = Prod
		return nil
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return errors.Errorf("invalid environment %q: expected prod or a http(s) url", v)
	}
	*e = Environment(v)
	return nil
}

// Endpoints are the registry paths relative to the environment base URL.
type Endpoints struct {
	Login        string
	Register     string
	Verify       string
	Cancel       string
	BulkRegister string
	Receipt      string
	Withholding  string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:        "/auth/login",
		Register:     "/v1/register",
		Verify:       "/v1/verify",
		Cancel:       "/v1/cancel",
		BulkRegister: "/v1/bulk/register",
		Receipt:      "/v1/receipt",
		Withholding:  "/v1/receipt/withholding",
	}
}

// EndpointsFromEnv applies EIMS_PATH_* overrides to the defaults.
func EndpointsFromEnv() Endpoints {
	d := DefaultEndpoints()
	return Endpoints{
		Login:        util.GetEnvOrDefault("EIMS_PATH_LOGIN", d.Login),
		Register:     util.GetEnvOrDefault("EIMS_PATH_REGISTER", d.Register),
		Verify:       util.GetEnvOrDefault("EIMS_PATH_VERIFY", d.Verify),
		Cancel:       util.GetEnvOrDefault("EIMS_PATH_CANCEL", d.Cancel),
		BulkRegister: util.GetEnvOrDefault("EIMS_PATH_BULK_REGISTER", d.BulkRegister),
		Receipt:      util.GetEnvOrDefault("EIMS_PATH_RECEIPT", d.Receipt),
		Withholding:  util.GetEnvOrDefault("EIMS_PATH_WITHHOLDING", d.Withholding),
	}
}
