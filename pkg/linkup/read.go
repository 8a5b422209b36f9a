package linkup

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cgmlink/librelinkup/pkg/cgm"
)

// ConnectionFunc denotes a caller-supplied selection function. It receives
// the full list of connections and returns the patient id of the one to use,
// or false if none applies
type ConnectionFunc func(connections []Connection) (string, bool)

// Connections fetches the list of patient connections visible to the account
func (c *Client) Connections() ([]Connection, error) {
	var resp connectionsResponse
	if err := c.getJSON(connectionsEndpoint, &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// ReadRaw fetches the unmapped graph-data response for the selected
// connection. Malformed graph entries are skipped individually so a single
// bad entry never fails the whole fetch
func (c *Client) ReadRaw() (RawSnapshot, error) {

	connections, err := c.Connections()
	if err != nil {
		return RawSnapshot{}, err
	}
	conn, err := c.selectConnection(connections)
	if err != nil {
		return RawSnapshot{}, err
	}

	path := connectionsEndpoint + "/" + conn.PatientID + "/graph"
	var resp graphResponse
	if err := c.getJSON(path, &resp); err != nil {
		return RawSnapshot{}, err
	}

	raw := RawSnapshot{
		Connection:    resp.Data.Connection,
		ActiveSensors: resp.Data.ActiveSensors,
		GraphData:     make([]GlucoseMeasurement, 0, len(resp.Data.GraphData)),
	}
	for i, entry := range resp.Data.GraphData {
		var measurement GlucoseMeasurement
		if err := json.Unmarshal(entry, &measurement); err != nil {
			c.logger.Warnf("skipping malformed graph entry %d: %s", i, err)
			continue
		}
		raw.GraphData = append(raw.GraphData, measurement)
	}

	return raw, nil
}

// Read fetches the current reading plus the historical readings for the
// selected connection, fulfilling the cgm.Reader interface. History keeps
// the exact order returned by the service. High / low flags are computed
// against the connection's target range rather than trusted from upstream
func (c *Client) Read() (cgm.Snapshot, error) {

	raw, err := c.ReadRaw()
	if err != nil {
		return cgm.Snapshot{}, err
	}

	if raw.Connection.GlucoseMeasurement == nil {
		return cgm.Snapshot{}, &MalformedError{
			Path: connectionsEndpoint + "/" + raw.Connection.PatientID + "/graph",
			Err:  fmt.Errorf("connection carries no current glucose measurement"),
		}
	}

	low, high := raw.Connection.targetRange()
	snapshot := cgm.Snapshot{
		Current: mapReading(*raw.Connection.GlucoseMeasurement, low, high),
		History: make([]cgm.Reading, 0, len(raw.GraphData)),
	}
	for _, measurement := range raw.GraphData {
		snapshot.History = append(snapshot.History, mapReading(measurement, low, high))
	}

	return snapshot, nil
}

// ReadAveraged starts a background poller that fetches every interval and
// invokes handler with the arithmetic mean once amount readings have been
// accumulated. The returned poller acts as cancellation handle
func (c *Client) ReadAveraged(amount int, interval time.Duration, handler func(avg cgm.Reading, batch []cgm.Reading, history []cgm.Reading)) (*cgm.Poller, error) {

	poller, err := cgm.NewPoller(c, amount, interval)
	if err != nil {
		return nil, err
	}
	poller.SetAverageHandler(handler)
	poller.SetLogger(c.logger)

	if err := poller.Start(); err != nil {
		return nil, err
	}

	return poller, nil
}

// User fetches the profile of the authenticated account
func (c *Client) User() (User, error) {
	var resp userResponse
	if err := c.getJSON(userEndpoint, &resp); err != nil {
		return User{}, err
	}

	return resp.Data.User, nil
}

// Account fetches the account info of the authenticated account
func (c *Client) Account() (User, error) {
	var resp accountResponse
	if err := c.getJSON(accountEndpoint, &resp); err != nil {
		return User{}, err
	}

	return resp.Data.User, nil
}

// Logbook fetches the glucose events / alarms recorded for a patient
func (c *Client) Logbook(patientID string) ([]LogbookEntry, error) {
	var resp logbookResponse
	if err := c.getJSON(connectionsEndpoint+"/"+patientID+"/logbook", &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// NotificationSettings fetches the alarm / notification configuration of a
// connection
func (c *Client) NotificationSettings(connectionID string) (NotificationSettings, error) {
	var resp notificationSettingsResponse
	if err := c.getJSON(notificationSettingsEndpoint+"/"+connectionID, &resp); err != nil {
		return NotificationSettings{}, err
	}

	return resp.Data, nil
}

// CountryConfig fetches the country configuration (unauthenticated, always
// against the global host). An empty version falls back to the client version
func (c *Client) CountryConfig(country, version string) (CountryConfig, error) {

	if version == "" {
		version = c.version
	}

	host := c.endpoint
	if host == "" {
		var err error
		if host, err = c.host(RegionGlobal); err != nil {
			return CountryConfig{}, err
		}
	}

	query := url.Values{}
	query.Set("country", country)
	query.Set("version", version)

	resp, err := c.rst.R().Get(host + countryConfigEndpoint + "?" + query.Encode())
	if err != nil {
		return CountryConfig{}, fmt.Errorf("request to %s failed: %w", countryConfigEndpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return CountryConfig{}, &StatusError{Path: countryConfigEndpoint, Code: resp.StatusCode(), Body: string(resp.Body())}
	}

	var envelope countryConfigResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return CountryConfig{}, &MalformedError{Path: countryConfigEndpoint, Err: err}
	}

	var config CountryConfig
	if err := json.Unmarshal(envelope.Data, &config); err != nil {
		return CountryConfig{}, &MalformedError{Path: countryConfigEndpoint, Err: err}
	}
	config.Raw = envelope.Data

	return config, nil
}

////////////////////////////////////////////////////////////////////////////////

// selectConnection picks one connection according to the configured strategy:
// by name, by function, or default-first. An empty list always fails with
// ErrNoConnections, before any strategy runs
func (c *Client) selectConnection(connections []Connection) (Connection, error) {

	if len(connections) == 0 {
		return Connection{}, ErrNoConnections
	}

	if c.connectionName != "" {
		for _, conn := range connections {
			if conn.Name() == c.connectionName {
				return conn, nil
			}
		}
		return Connection{}, fmt.Errorf("%w: name %q", ErrConnectionNotFound, c.connectionName)
	}

	if c.connectionFn != nil {
		patientID, ok := c.connectionFn(connections)
		if !ok {
			return Connection{}, fmt.Errorf("%w: selection function declined all connections", ErrConnectionNotFound)
		}
		for _, conn := range connections {
			if conn.PatientID == patientID {
				return conn, nil
			}
		}
		return Connection{}, fmt.Errorf("%w: patient id %q", ErrConnectionNotFound, patientID)
	}

	return connections[0], nil
}

// targetRange returns the connection's configured target range, falling back
// to the service defaults where the connection carries none
func (c Connection) targetRange() (low, high float64) {
	low, high = c.TargetLow, c.TargetHigh
	if low <= 0 {
		low = defaultTargetLow
	}
	if high <= 0 {
		high = defaultTargetHigh
	}

	return
}

// mapReading normalizes a raw glucose entry. The trend is advisory: missing
// or unrecognized trend codes map to TrendNotComputable, never an error. An
// unparseable factory timestamp falls back to the current time
func mapReading(m GlucoseMeasurement, low, high float64) cgm.Reading {

	trend := cgm.TrendNotComputable
	if m.TrendArrow != nil {
		trend = cgm.TrendFromArrow(*m.TrendArrow)
	}

	timestamp, err := time.ParseInLocation(factoryTimestampLayout, m.FactoryTimestamp, time.UTC)
	if err != nil {
		timestamp = time.Now().UTC()
	}

	value := m.ValueInMgPerDl

	return cgm.Reading{
		Value: value,
		High:  value > high,
		Low:   value < low,
		Trend: trend,
		Time:  timestamp,
	}
}
