package linkup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cgmlink/librelinkup/pkg/cgm"
	"github.com/go-resty/resty/v2"
)

const (
	loginEndpoint                = "/llu/auth/login"
	connectionsEndpoint          = "/llu/connections"
	countryConfigEndpoint        = "/llu/config/country"
	userEndpoint                 = "/user"
	accountEndpoint              = "/account"
	notificationSettingsEndpoint = "/llu/notifications/settings"

	loginStatusBadCredentials = 2
	loginStatusAdditionalStep = 4

	defaultVersion = "4.16.0"
	defaultTimeout = 30 * time.Second

	// The service only talks to clients presenting themselves as the mobile app
	defaultUserAgent = "Mozilla/5.0 (iPhone; CPU OS 17_4.1 like Mac OS X) AppleWebKit/536.26 (KHTML, like Gecko) Version/17.4.1 Mobile/10A5355d Safari/8536.25"

	// Fallback target range (mg/dL) for connections that carry none
	defaultTargetLow  = 70.
	defaultTargetHigh = 180.

	// Timestamp format of raw glucose entries (factory time, UTC)
	factoryTimestampLayout = "1/2/2006 3:04:05 PM"

	// Tokens nearing expiry are refreshed proactively
	tokenExpirySlack = time.Minute
)

// Client denotes a LibreLinkUp API client. It implements cgm.Reader and is
// safe for concurrent use: the session token is shared between foreground
// calls and background pollers and guarded accordingly
type Client struct {
	email    string
	password string
	version  string

	connectionName string
	connectionFn   ConnectionFunc

	region      Region
	regionHosts map[Region]string
	endpoint    string
	timeout     time.Duration

	rst    *resty.Client
	logger cgm.Logger

	// Session state, replaced wholesale on every (re-)login
	mu        sync.Mutex
	hostURL   string
	token     string
	accountID string
	expires   time.Time
	authGen   uint64
}

// New instantiates a new Client for the given account credentials, executing
// functional options, if any
func New(email, password string, options ...Option) (*Client, error) {

	if email == "" {
		return nil, fmt.Errorf("no account email provided")
	}
	if password == "" {
		return nil, fmt.Errorf("no account password provided")
	}

	c := &Client{
		email:       email,
		password:    password,
		version:     defaultVersion,
		region:      RegionGlobal,
		regionHosts: defaultRegionHosts,
		timeout:     defaultTimeout,
		logger:      &cgm.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(c)
	}

	host := c.endpoint
	if host == "" {
		var err error
		if host, err = c.host(c.region); err != nil {
			return nil, err
		}
	}
	c.hostURL = host

	c.rst = resty.New().
		SetTimeout(c.timeout).
		SetHeaders(map[string]string{
			"User-Agent":      defaultUserAgent,
			"Accept":          "application/json",
			"Content-Type":    "application/json;charset=UTF-8",
			"Cache-Control":   "no-cache",
			"Accept-Language": "en-US",
			"product":         "llu.ios",
			"version":         c.version,
		})

	return c, nil
}

// Login authenticates against the service, following at most one regional
// redirect, and caches the session token. It is invoked implicitly by all
// authenticated operations and usually does not have to be called directly
func (c *Client) Login() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loginLocked()
}

////////////////////////////////////////////////////////////////////////////////

// loginLocked performs the login call (c.mu must be held). The response may
// instruct the client to use a different regional host, in which case the
// login is re-issued against that host exactly once
func (c *Client) loginLocked() error {

	host := c.hostURL
	redirected := false

	for {
		resp, err := c.rst.R().
			SetBody(loginRequest{Email: c.email, Password: c.password}).
			Post(host + loginEndpoint)
		if err != nil {
			return fmt.Errorf("login request failed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return &StatusError{Path: loginEndpoint, Code: resp.StatusCode(), Body: string(resp.Body())}
		}

		var body loginResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return &MalformedError{Path: loginEndpoint, Err: err}
		}

		if body.Data.Lockout != nil {
			return &AccountLockedError{RetryAfter: time.Duration(body.Data.Lockout.Lockout) * time.Second}
		}
		if body.Status == loginStatusBadCredentials {
			return ErrBadCredentials
		}
		if body.Status == loginStatusAdditionalStep {
			component := "unknown"
			if body.Data.Step != nil {
				component = body.Data.Step.ComponentName
			}
			return &AdditionalStepError{Component: component}
		}

		if body.Data.Redirect {
			if redirected {
				return ErrTooManyRedirects
			}
			if body.Data.Region == "" {
				return fmt.Errorf("%w: redirect without region", ErrUnknownRegion)
			}
			region, err := ParseRegion(body.Data.Region)
			if err != nil {
				return err
			}
			next, err := c.host(region)
			if err != nil {
				return err
			}

			c.logger.Debugf("following regional redirect to %s (%s)", region, next)
			host = next
			redirected = true
			continue
		}

		if body.Data.AuthTicket.Token == "" {
			return &MalformedError{Path: loginEndpoint, Err: fmt.Errorf("login response carries no auth ticket")}
		}

		c.hostURL = host
		c.token = body.Data.AuthTicket.Token
		c.accountID = hashAccountID(body.Data.User.ID)
		c.expires = time.Time{}
		if body.Data.AuthTicket.Expires > 0 {
			c.expires = time.Unix(body.Data.AuthTicket.Expires, 0)
		}
		c.authGen++

		c.logger.Debugf("authenticated against %s (token valid until %v)", host, c.expires)
		return nil
	}
}

// ensureAuth returns the current session token, logging in first if no valid
// token is held. The returned generation allows callers to detect whether
// another goroutine has refreshed the session in the meantime
func (c *Client) ensureAuth() (token, accountID string, gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || (!c.expires.IsZero() && time.Until(c.expires) < tokenExpirySlack) {
		if err := c.loginLocked(); err != nil {
			return "", "", 0, err
		}
	}

	return c.token, c.accountID, c.authGen, nil
}

// reauth refreshes the session after an unauthorized response, unless another
// goroutine already did (generation check, so concurrent 401s cause at most
// one login)
func (c *Client) reauth(gen uint64) (token, accountID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authGen == gen {
		if err := c.loginLocked(); err != nil {
			return "", "", err
		}
	}

	return c.token, c.accountID, nil
}

// getJSON performs an authenticated GET, re-authenticating exactly once on
// HTTP 401 before surfacing the failure
func (c *Client) getJSON(path string, out interface{}) error {

	token, accountID, gen, err := c.ensureAuth()
	if err != nil {
		return err
	}

	resp, err := c.doGet(path, token, accountID)
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		if token, accountID, err = c.reauth(gen); err != nil {
			return err
		}
		if resp, err = c.doGet(path, token, accountID); err != nil {
			return err
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return &StatusError{Path: path, Code: resp.StatusCode(), Body: string(resp.Body())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &MalformedError{Path: path, Err: err}
	}

	return nil
}

func (c *Client) doGet(path, token, accountID string) (*resty.Response, error) {

	c.mu.Lock()
	host := c.hostURL
	c.mu.Unlock()

	resp, err := c.rst.R().
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("account-id", accountID).
		Get(host + path)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}

	return resp, nil
}

// hashAccountID derives the account-id header value from the user id
func hashAccountID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
