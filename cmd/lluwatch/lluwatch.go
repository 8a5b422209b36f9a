package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cgmlink/librelinkup/pkg/cgm"
	"github.com/cgmlink/librelinkup/pkg/linkup"
	"github.com/cgmlink/librelinkup/pkg/mock"
	"github.com/sirupsen/logrus"
)

type config struct {
	email      string
	password   string
	region     string
	connection string

	amount   int
	interval time.Duration
	demo     bool
}

var log = logrus.New()

var (
	valueStyle   = lipgloss.NewStyle().Bold(true)
	inRangeStyle = valueStyle.Foreground(lipgloss.Color("2"))
	highStyle    = valueStyle.Foreground(lipgloss.Color("3"))
	lowStyle     = valueStyle.Foreground(lipgloss.Color("1"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {

	// Parse command line options
	var cfg config

	flag.StringVar(&cfg.email, "email", os.Getenv("LLU_EMAIL"), "LibreLinkUp account email (or LLU_EMAIL)")
	flag.StringVar(&cfg.password, "password", os.Getenv("LLU_PASSWORD"), "LibreLinkUp account password (or LLU_PASSWORD)")
	flag.StringVar(&cfg.region, "region", os.Getenv("LLU_REGION"), "API region code, e.g. us / eu (or LLU_REGION)")
	flag.StringVar(&cfg.connection, "connection", "", "Patient connection by display name")
	flag.IntVar(&cfg.amount, "amount", 5, "Number of readings per rolling average")
	flag.DurationVar(&cfg.interval, "interval", time.Minute, "Polling interval")
	flag.BoolVar(&cfg.demo, "demo", false, "Run against a synthetic source instead of the service")
	flag.Parse()

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	poller, err := cgm.NewPoller(source, cfg.amount, cfg.interval)
	if err != nil {
		return err
	}

	snapshots := make(chan cgm.Snapshot, 8)
	averages := make(chan cgm.Average, 8)
	errs := make(chan error, 8)

	poller.SetReadingHandler(func(snapshot cgm.Snapshot) {
		select {
		case snapshots <- snapshot:
		default:
		}
	})
	poller.SetAverageChannel(averages)
	poller.SetErrorHandler(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	if err := poller.Start(); err != nil {
		return err
	}
	defer poller.Cancel()

	m := model{
		poller:    poller,
		snapshots: snapshots,
		averages:  averages,
		errs:      errs,
		amount:    cfg.amount,
	}

	_, err = tea.NewProgram(m).Run()
	return err
}

func newSource(cfg config) (cgm.Reader, error) {

	if cfg.demo {
		return mock.New(mock.WithStep(cfg.interval))
	}

	opts := []linkup.Option{}
	if cfg.region != "" {
		region, err := linkup.ParseRegion(cfg.region)
		if err != nil {
			return nil, err
		}
		opts = append(opts, linkup.WithRegion(region))
	}
	if cfg.connection != "" {
		opts = append(opts, linkup.WithConnectionName(cfg.connection))
	}

	return linkup.New(cfg.email, cfg.password, opts...)
}

////////////////////////////////////////////////////////////////////////////////

type snapshotMsg cgm.Snapshot

type averageMsg cgm.Average

type errMsg struct {
	err error
}

type model struct {
	poller    *cgm.Poller
	snapshots chan cgm.Snapshot
	averages  chan cgm.Average
	errs      chan error
	amount    int

	snapshot cgm.Snapshot
	average  *cgm.Average
	lastErr  error
	received bool
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.waitForAverage(), m.waitForError())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.poller.Cancel()
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snapshot = cgm.Snapshot(msg)
		m.received = true
		m.lastErr = nil
		return m, m.waitForSnapshot()

	case averageMsg:
		avg := cgm.Average(msg)
		m.average = &avg
		return m, m.waitForAverage()

	case errMsg:
		m.lastErr = msg.err
		if m.poller.Status() == cgm.StateCancelled {
			// Fatal error, nothing more will arrive
			return m, nil
		}
		return m, m.waitForError()
	}

	return m, nil
}

func (m model) View() string {

	out := faintStyle.Render("LibreLinkUp watch (q to quit)") + "\n\n"

	if !m.received {
		out += "waiting for first reading...\n"
	} else {
		current := m.snapshot.Current
		out += fmt.Sprintf("  %s %s\n",
			styleFor(current).Render(fmt.Sprintf("%.0f mg/dL", current.Value)),
			current.Trend.Arrow())
		out += faintStyle.Render(fmt.Sprintf("  at %s", current.Time.Format(time.Kitchen))) + "\n\n"

		if m.average != nil {
			out += fmt.Sprintf("  rolling average (%d readings): %.1f mg/dL %s\n\n",
				len(m.average.Batch), m.average.Reading.Value, m.average.Reading.Trend.Arrow())
		} else {
			out += faintStyle.Render(fmt.Sprintf("  collecting %d readings for average (%d so far)",
				m.amount, m.poller.Collected())) + "\n\n"
		}

		if n := len(m.snapshot.History); n > 0 {
			out += faintStyle.Render("  recent:") + " "
			start := n - 6
			if start < 0 {
				start = 0
			}
			for _, r := range m.snapshot.History[start:] {
				out += fmt.Sprintf("%.0f%s ", r.Value, r.Trend.Arrow())
			}
			out += "\n"
		}
	}

	if m.lastErr != nil {
		out += "\n" + errStyle.Render("error: "+m.lastErr.Error()) + "\n"
	}

	return out
}

func (m model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.snapshots)
	}
}

func (m model) waitForAverage() tea.Cmd {
	return func() tea.Msg {
		return averageMsg(<-m.averages)
	}
}

func (m model) waitForError() tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: <-m.errs}
	}
}

func styleFor(r cgm.Reading) lipgloss.Style {
	switch {
	case r.Low:
		return lowStyle
	case r.High:
		return highStyle
	default:
		return inRangeStyle
	}
}
