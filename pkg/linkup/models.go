package linkup

import "encoding/json"

// AuthTicket denotes the opaque session token issued during login together
// with its validity window (Unix timestamps / seconds)
type AuthTicket struct {
	Token    string `json:"token"`
	Expires  int64  `json:"expires"`
	Duration int64  `json:"duration"`
}

// User denotes the profile of the authenticated LibreLinkUp account
type User struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	UILanguage  string `json:"uiLanguage"`
	AccountType string `json:"accountType"`
	UOM         string `json:"uom"`
	DateFormat  string `json:"dateFormat"`
	TimeFormat  string `json:"timeFormat"`
	Created     int64  `json:"created"`
	LastLogin   int64  `json:"lastLogin"`
}

// GlucoseMeasurement denotes a single raw glucose entry as reported by the
// service, both as the current measurement of a connection and as a graph
// data point (where the trend arrow may be absent)
type GlucoseMeasurement struct {
	FactoryTimestamp string          `json:"FactoryTimestamp"`
	Timestamp        string          `json:"Timestamp"`
	Type             int             `json:"type"`
	ValueInMgPerDl   float64         `json:"ValueInMgPerDl"`
	TrendArrow       *int            `json:"TrendArrow,omitempty"`
	TrendMessage     json.RawMessage `json:"TrendMessage,omitempty"`
	MeasurementColor int             `json:"MeasurementColor"`
	GlucoseUnits     int             `json:"GlucoseUnits"`
	Value            float64         `json:"Value"`
	IsHigh           bool            `json:"isHigh"`
	IsLow            bool            `json:"isLow"`
}

// Connection denotes a patient account the authenticated user is permitted
// to view. Deep device / alarm sub-objects the client never interprets ride
// along untouched as raw JSON
type Connection struct {
	ID                 string              `json:"id"`
	PatientID          string              `json:"patientId"`
	Country            string              `json:"country"`
	Status             int                 `json:"status"`
	FirstName          string              `json:"firstName"`
	LastName           string              `json:"lastName"`
	TargetLow          float64             `json:"targetLow"`
	TargetHigh         float64             `json:"targetHigh"`
	UOM                int                 `json:"uom"`
	Sensor             json.RawMessage     `json:"sensor,omitempty"`
	AlarmRules         json.RawMessage     `json:"alarmRules,omitempty"`
	GlucoseMeasurement *GlucoseMeasurement `json:"glucoseMeasurement,omitempty"`
	GlucoseItem        json.RawMessage     `json:"glucoseItem,omitempty"`
	GlucoseAlarm       json.RawMessage     `json:"glucoseAlarm,omitempty"`
	PatientDevice      json.RawMessage     `json:"patientDevice,omitempty"`
	Created            int64               `json:"created"`
}

// Name returns the display name of the connection ("First Last")
func (c Connection) Name() string {
	return c.FirstName + " " + c.LastName
}

// ActiveSensor denotes an active sensor / device pair attached to a connection
type ActiveSensor struct {
	Sensor json.RawMessage `json:"sensor,omitempty"`
	Device json.RawMessage `json:"device,omitempty"`
}

// RawSnapshot denotes the unmapped graph-data response for callers wanting
// full fidelity
type RawSnapshot struct {
	Connection    Connection           `json:"connection"`
	ActiveSensors []ActiveSensor       `json:"activeSensors"`
	GraphData     []GlucoseMeasurement `json:"graphData"`
}

// LogbookEntry denotes a single glucose event or alarm from the logbook
type LogbookEntry struct {
	FactoryTimestamp string  `json:"FactoryTimestamp"`
	Timestamp        string  `json:"Timestamp"`
	Type             int     `json:"type"`
	ValueInMgPerDl   float64 `json:"ValueInMgPerDl"`
	MeasurementColor int     `json:"MeasurementColor"`
	GlucoseUnits     int     `json:"GlucoseUnits"`
	Value            float64 `json:"Value"`
	IsHigh           bool    `json:"isHigh"`
	IsLow            bool    `json:"isLow"`
	TrendArrow       int     `json:"TrendArrow"`
	TrendMessage     *string `json:"TrendMessage,omitempty"`
	AlarmType        int     `json:"alarmType"`
}

// NotificationSettings denotes the alarm / notification configuration of a
// connection. Rules are service-defined and left uninterpreted
type NotificationSettings struct {
	ConnectionID  string          `json:"connectionId"`
	AlarmRules    json.RawMessage `json:"alarmRules,omitempty"`
	PatientDevice json.RawMessage `json:"patientDevice,omitempty"`
}

// CountryConfig denotes the (partial) country configuration payload. Fields
// not interesting to this client are left out; the full payload is available
// via Raw
type CountryConfig struct {
	LSLApi           string                    `json:"lslApi"`
	MinimumVersion   string                    `json:"minVersion"`
	NotificationSvc  string                    `json:"notificationService"`
	RegionalEndpoint map[string]RegionEndpoint `json:"regionalMap"`
	Raw              json.RawMessage           `json:"-"`
}

// RegionEndpoint denotes a regional endpoint pair from the country configuration
type RegionEndpoint struct {
	LSLApi    string `json:"lslApi"`
	SocketHub string `json:"socketHub"`
}

////////////////////////////////////////////////////////////////////////////////

// loginRequest denotes the login call body
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// lockoutInfo denotes the rate-limiting payload of a locked account
type lockoutInfo struct {
	Failures int `json:"failures"`
	Interval int `json:"interval"`
	Lockout  int `json:"lockout"`
}

// loginStep denotes a pending additional authentication step
type loginStep struct {
	Type          string `json:"type"`
	ComponentName string `json:"componentName"`
}

// loginResponse denotes the login call response. The service multiplexes
// four shapes (complete, redirect, step, lockout) over the same envelope;
// optional fields cover all of them
type loginResponse struct {
	Status int `json:"status"`
	Data   struct {
		Redirect   bool         `json:"redirect"`
		Region     string       `json:"region"`
		AuthTicket AuthTicket   `json:"authTicket"`
		User       User         `json:"user"`
		Step       *loginStep   `json:"step"`
		Lockout    *lockoutInfo `json:"data"`
		Message    string       `json:"message"`
	} `json:"data"`
}

// connectionsResponse denotes the connections list response
type connectionsResponse struct {
	Status int          `json:"status"`
	Data   []Connection `json:"data"`
	Ticket AuthTicket   `json:"ticket"`
}

// graphResponse denotes the graph-data response. Graph entries are decoded
// individually so single malformed entries can be skipped
type graphResponse struct {
	Status int `json:"status"`
	Data   struct {
		Connection    Connection        `json:"connection"`
		ActiveSensors []ActiveSensor    `json:"activeSensors"`
		GraphData     []json.RawMessage `json:"graphData"`
	} `json:"data"`
	Ticket AuthTicket `json:"ticket"`
}

// userResponse denotes the GET /user response
type userResponse struct {
	Status int `json:"status"`
	Data   struct {
		User       User       `json:"user"`
		AuthTicket AuthTicket `json:"authTicket"`
	} `json:"data"`
}

// accountResponse denotes the GET /account response
type accountResponse struct {
	Status int `json:"status"`
	Data   struct {
		User User `json:"user"`
	} `json:"data"`
	Ticket AuthTicket `json:"ticket"`
}

// logbookResponse denotes the logbook response
type logbookResponse struct {
	Status int            `json:"status"`
	Data   []LogbookEntry `json:"data"`
	Ticket AuthTicket     `json:"ticket"`
}

// notificationSettingsResponse denotes the notification settings response
type notificationSettingsResponse struct {
	Status int                  `json:"status"`
	Data   NotificationSettings `json:"data"`
	Ticket AuthTicket           `json:"ticket"`
}

// countryConfigResponse denotes the country configuration response
type countryConfigResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}
