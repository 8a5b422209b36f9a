package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/cgmlink/librelinkup/pkg/cgm"
	"github.com/cgmlink/librelinkup/pkg/linkup"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type config struct {
	email      string
	password   string
	region     string
	version    string
	connection string
	configFile string
	debug      bool

	raw           bool
	user          bool
	account       bool
	logbook       bool
	notifications bool
	country       string
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {

	// Parse command line options
	var cfg config

	flag.StringVar(&cfg.email, "email", "", "LibreLinkUp account email (or LLU_EMAIL)")
	flag.StringVar(&cfg.password, "password", "", "LibreLinkUp account password (or LLU_PASSWORD)")
	flag.StringVar(&cfg.region, "region", "", "API region code, e.g. us / eu (or LLU_REGION)")
	flag.StringVar(&cfg.version, "version", "", "Client version advertised to the service")
	flag.StringVar(&cfg.connection, "connection", "", "Patient connection by display name (or LLU_CONNECTION)")
	flag.StringVar(&cfg.configFile, "config", "", "Optional YAML configuration file")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.BoolVar(&cfg.raw, "raw", false, "Print the unmapped graph-data response")
	flag.BoolVar(&cfg.user, "user", false, "Print the account user profile")
	flag.BoolVar(&cfg.account, "account", false, "Print the account info")
	flag.BoolVar(&cfg.logbook, "logbook", false, "Print the logbook of the selected connection")
	flag.BoolVar(&cfg.notifications, "notifications", false, "Print the notification settings of the selected connection")
	flag.StringVar(&cfg.country, "country", "", "Print the country configuration for the given country code")
	flag.Parse()

	// Fall back to environment / config file for anything not set via flag
	// (flag > env > file precedence)
	viper.SetEnvPrefix("llu")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if cfg.configFile != "" {
		viper.SetConfigFile(cfg.configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if cfg.email == "" {
		cfg.email = viper.GetString("email")
	}
	if cfg.password == "" {
		cfg.password = viper.GetString("password")
	}
	if cfg.region == "" {
		cfg.region = viper.GetString("region")
	}
	if cfg.connection == "" {
		cfg.connection = viper.GetString("connection")
	}

	opts := []linkup.Option{
		linkup.WithLogger(cgm.NewDefaultLogger(cfg.debug)),
	}
	if cfg.region != "" {
		region, err := linkup.ParseRegion(cfg.region)
		if err != nil {
			return err
		}
		opts = append(opts, linkup.WithRegion(region))
	}
	if cfg.version != "" {
		opts = append(opts, linkup.WithVersion(cfg.version))
	}
	if cfg.connection != "" {
		opts = append(opts, linkup.WithConnectionName(cfg.connection))
	}

	c, err := linkup.New(cfg.email, cfg.password, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize LibreLinkUp client: %w", err)
	}

	switch {
	case cfg.country != "":
		countryConfig, err := c.CountryConfig(cfg.country, "")
		if err != nil {
			return err
		}
		return printJSON(countryConfig.Raw)

	case cfg.user:
		user, err := c.User()
		if err != nil {
			return err
		}
		return printJSON(user)

	case cfg.account:
		user, err := c.Account()
		if err != nil {
			return err
		}
		return printJSON(user)

	case cfg.raw:
		raw, err := c.ReadRaw()
		if err != nil {
			return err
		}
		return printJSON(raw)

	case cfg.logbook:
		conn, err := selectedConnection(c, cfg.connection)
		if err != nil {
			return err
		}
		entries, err := c.Logbook(conn.PatientID)
		if err != nil {
			return err
		}
		return printJSON(entries)

	case cfg.notifications:
		conn, err := selectedConnection(c, cfg.connection)
		if err != nil {
			return err
		}
		settings, err := c.NotificationSettings(conn.ID)
		if err != nil {
			return err
		}
		return printJSON(settings)
	}

	snapshot, err := c.Read()
	if err != nil {
		return err
	}

	log.Infof("Current: %.0f mg/dL %s (%s) at %v",
		snapshot.Current.Value, snapshot.Current.Trend.Arrow(), rangeLabel(snapshot.Current), snapshot.Current.Time)
	log.Infof("History: %d readings", len(snapshot.History))
	for _, r := range tail(snapshot.History, 6) {
		log.Infof("  %v  %.0f mg/dL %s", r.Time, r.Value, r.Trend.Arrow())
	}

	return nil
}

// selectedConnection resolves the connection the logbook / notification
// operations target, honoring the -connection flag and defaulting to the
// first one
func selectedConnection(c *linkup.Client, name string) (linkup.Connection, error) {

	connections, err := c.Connections()
	if err != nil {
		return linkup.Connection{}, err
	}
	if len(connections) == 0 {
		return linkup.Connection{}, linkup.ErrNoConnections
	}

	if name != "" {
		for _, conn := range connections {
			if conn.Name() == name {
				return conn, nil
			}
		}
		return linkup.Connection{}, fmt.Errorf("%w: name %q", linkup.ErrConnectionNotFound, name)
	}

	return connections[0], nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	return nil
}

func rangeLabel(r cgm.Reading) string {
	switch {
	case r.High:
		return "high"
	case r.Low:
		return "low"
	default:
		return "in range"
	}
}

func tail(readings []cgm.Reading, n int) []cgm.Reading {
	if len(readings) <= n {
		return readings
	}
	return readings[len(readings)-n:]
}
