package accessors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/chain"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// MetricsReport reads a metrics report: a header of "key: value" lines followed by
// many small tables. Related tables (seasons, weightings) are stacked into
// one panel per metric.
var MetricsReport = accessor.MustNew("metrics", parseMetrics,
	accessor.WithDescription("seasonal acoustic metrics reports"),
)

var (
	metricsVersionRe = regexp.MustCompile(`^### Metrics File V(.+)$`)
	metricsTitleRe   = regexp.MustCompile(`(.*),\s?(.*?)\s?\((.*)\)`)
	metricsNRe       = regexp.MustCompile(`n = (\d+) ?(.*)`)
)

// timeAboveTitle is shared by the dBA and dBT tables; the unit in the first
// column header tells them apart.
const timeAboveTitle = "Time Above (%)"

type metricTable struct {
	metric    string
	tableType string
}

type metricsLayout struct {
	names  []string
	titles map[string]metricTable
}

// metricsLayouts maps each supported file version to its table titles.
// Single-table metrics have an empty table type.
var metricsLayouts = map[string]metricsLayout{
	"1.35": {
		names: []string{
			"hourlyMedian", "frequency", "ambient", "percentTimeAbove", "contour",
			"eventAudibilityPct", "eventAvg", "categoricalEventAudibility",
			"noiseFreeInterval", "percentTimeAudible",
		},
		titles: map[string]metricTable{
			"Median Hourly Metrics (dBA)":                {"hourlyMedian", "dBA"},
			"Median Hourly Metrics (dBT)":                {"hourlyMedian", "dBT"},
			"Median Nighttime Frequency Metrics (dB)":    {"frequency", "night"},
			"Median Daytime Frequency Metrics (dB)":      {"frequency", "day"},
			"Ambient (dBA)":                              {"ambient", "dBA"},
			"Ambient (dBT)":                              {"ambient", "dBT"},
			"Time Above dBA (%)":                         {"percentTimeAbove", "dBA"},
			"Time Above dBT (%)":                         {"percentTimeAbove", "dBT"},
			"L90 Contour Data (dB)":                      {"contour", "l90"},
			"Lnat Contour Data (dB)":                     {"contour", "lnat"},
			"L50 Contour Data (dB)":                      {"contour", "l50"},
			"L05 Contour Data (dB)":                      {"contour", "l05"},
			"SPLAT Detailed Event Audibility (%)":        {"eventAudibilityPct", ""},
			"SPLAT Detailed Average Event Counts":        {"eventAvg", "counts"},
			"SPLAT Detailed Average Event Lengths (sec)": {"eventAvg", "lengths"},
			"SPLAT Categorical Event Audibility (%)":     {"categoricalEventAudibility", ""},
			"SPLAT Noise Free Interval (sec)":            {"noiseFreeInterval", ""},
			"Time Audible (%)":                           {"percentTimeAudible", ""},
		},
	},
}

// Metric is one metric of a report.
type Metric struct {
	// Data is season × rows × columns, or season × table type × rows ×
	// columns for metrics built from several tables
	Data *frame.Panel
	// N is the length of the data behind each table: a series by season, or
	// a table of table type × season
	N any
}

func (m *Metric) GetAttr(name string) (any, error) {
	switch name {
	case "data":
		return m.Data, nil
	case "n":
		return m.N, nil
	}
	return nil, fmt.Errorf("%w: metric has no attribute %q", chain.ErrNoAttribute, name)
}

// Metrics is a parsed metrics report. Metrics missing from the file are nil.
type Metrics struct {
	Version  string
	Metadata map[string]string
	names    []string
	metrics  map[string]*Metric
}

// Get returns a metric by name; a known but absent metric is (nil, true).
func (m *Metrics) Get(name string) (*Metric, bool) {
	metric, ok := m.metrics[name]
	return metric, ok
}

// Names lists the metrics this report version defines.
func (m *Metrics) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *Metrics) GetAttr(name string) (any, error) {
	if name == "metadata" {
		metadata := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		return metadata, nil
	}
	if metric, ok := m.metrics[name]; ok {
		return metric, nil
	}
	return nil, fmt.Errorf("%w: metrics report has no metric %q", chain.ErrNoAttribute, name)
}

func (m *Metrics) String() string {
	var present []string
	for _, name := range m.names {
		if m.metrics[name] != nil {
			present = append(present, name)
		}
	}
	return fmt.Sprintf("Metrics(V%s, %s)", m.Version, strings.Join(present, ", "))
}

func parseMetrics(ctx context.Context, entry *types.Entry, _ any) (any, error) {
	data, err := readAll(ctx, entry)
	if err != nil {
		return nil, err
	}
	report, err := readMetrics(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics %s: %w", entry, err)
	}
	return report, nil
}

func metricsVersion(line string) (string, error) {
	match := metricsVersionRe.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return "", fmt.Errorf("unrecognized metrics file version: %q", line)
	}
	return match[1], nil
}

// seasonTables collects, per metric, the tables of each season in the order
// they appear.
type seasonTables struct {
	seasons []string
	types   []string
	tables  map[string]map[string]*frame.Table
	ns      map[string]map[string]any
}

func (s *seasonTables) add(season, tableType string, table *frame.Table, n any) {
	if _, ok := s.tables[season]; !ok {
		s.seasons = append(s.seasons, season)
		s.tables[season] = map[string]*frame.Table{}
		s.ns[season] = map[string]any{}
	}
	found := false
	for _, t := range s.types {
		if t == tableType {
			found = true
		}
	}
	if !found {
		s.types = append(s.types, tableType)
	}
	s.tables[season][tableType] = table
	s.ns[season][tableType] = n
}

func readMetrics(text string) (*Metrics, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	sections := strings.Split(text, "\n\n")
	// the file ends with a blank line, leaving an empty final section
	if last := len(sections) - 1; last > 0 && strings.TrimSpace(sections[last]) == "" {
		sections = sections[:last]
	}

	headerLines := strings.Split(sections[0], "\n")
	if len(headerLines) < 2 {
		return nil, fmt.Errorf("unrecognized header in metrics file")
	}
	version, err := metricsVersion(headerLines[0])
	if err != nil {
		return nil, err
	}
	layout, ok := metricsLayouts[version]
	if !ok {
		return nil, fmt.Errorf("no metrics reader for version %s", version)
	}

	metadata := map[string]string{}
	for _, line := range headerLines[2:] {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("unparseable header line %q", line)
		}
		metadata[strings.ToLower(key)] = strings.TrimSpace(value)
	}

	collected := map[string]*seasonTables{}
	for _, section := range sections[1:] {
		lines := strings.Split(strings.Trim(section, "\n"), "\n")
		if len(lines) < 2 {
			continue
		}
		match := metricsTitleRe.FindStringSubmatch(lines[0])
		if match == nil {
			logger.Warnf("Unparseable metrics table title: %s", lines[0])
			continue
		}
		title, season, nText := match[1], match[2], match[3]
		columns := strings.Split(lines[1], "\t")

		if title == timeAboveTitle {
			if len(columns) < 2 || columns[1] == "" {
				logger.Warnf("Time Above (%%) table without units: %v", columns)
				continue
			}
			switch columns[1][len(columns[1])-1] {
			case 'A':
				title = "Time Above dBA (%)"
			case 'T':
				title = "Time Above dBT (%)"
			default:
				logger.Warnf("Time Above (%%) table with unexpected units: %v", columns)
				continue
			}
		}
		target, ok := layout.titles[title]
		if !ok {
			logger.Warnf("Unknown metric table: %s", title)
			continue
		}

		table := metricsTable(columns, lines[2:])
		if target.metric == "percentTimeAbove" {
			table = stripColumnUnits(table)
		}

		tables, ok := collected[target.metric]
		if !ok {
			tables = &seasonTables{tables: map[string]map[string]*frame.Table{}, ns: map[string]map[string]any{}}
			collected[target.metric] = tables
		}
		tables.add(season, target.tableType, table, metricsN(nText))
	}

	report := &Metrics{Version: version, Metadata: metadata, names: layout.names, metrics: map[string]*Metric{}}
	for _, name := range layout.names {
		tables, ok := collected[name]
		if !ok {
			report.metrics[name] = nil
			continue
		}
		metric, err := stackMetric(tables)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		report.metrics[name] = metric
	}
	return report, nil
}

// metricsN parses "n = 32 days", "n = 467hrs" or "n = 16" (hours). Anything
// else is missing.
func metricsN(text string) any {
	match := metricsNRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	amount, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	switch unit := strings.TrimSpace(match[2]); unit {
	case "", "hrs":
		return time.Duration(amount) * time.Hour
	case "days":
		return time.Duration(amount) * 24 * time.Hour
	default:
		d, err := time.ParseDuration(match[1] + unit)
		if err != nil {
			return nil
		}
		return d
	}
}

// metricsTable builds one report table. The first cell of each row labels
// it; values are coerced to numbers.
func metricsTable(columns []string, body []string) *frame.Table {
	rowLabels := make([]any, 0, len(body))
	data := make([][]any, len(columns)-1)
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		rowLabels = append(rowLabels, strings.TrimSpace(cells[0]))
		for c := range data {
			var v any
			if c+1 < len(cells) {
				v = coerceNumeric(cells[c+1])
			}
			data[c] = append(data[c], v)
		}
	}
	colLabels := make([]any, len(columns)-1)
	for i, c := range columns[1:] {
		colLabels[i] = strings.TrimSpace(c)
	}
	for c := range data {
		if data[c] == nil {
			data[c] = []any{}
		}
	}
	return frame.NewTable(guessAxis(rowLabels), guessAxis(colLabels), data)
}

// guessAxis names percentile (L..) and hour (..h) axes; hour labels become
// integers.
func guessAxis(labels []any) *frame.Index {
	if len(labels) == 0 {
		return frame.NewIndex(labels)
	}
	allL, allH := true, true
	for _, l := range labels {
		s := fmt.Sprint(l)
		allL = allL && strings.HasPrefix(s, "L")
		allH = allH && strings.HasSuffix(s, "h")
	}
	switch {
	case allL:
		return frame.NewIndex(labels, "percentile")
	case allH:
		hours := make([]any, len(labels))
		for i, l := range labels {
			hour, err := strconv.Atoi(strings.TrimSuffix(fmt.Sprint(l), "h"))
			if err != nil {
				return frame.NewIndex(labels)
			}
			hours[i] = hour
		}
		return frame.NewIndex(hours, "hour")
	}
	return frame.NewIndex(labels)
}

// stripColumnUnits drops the trailing A or T so dBA and dBT tables share
// column labels.
func stripColumnUnits(table *frame.Table) *frame.Table {
	labels := table.Columns().Labels()
	for i, l := range labels {
		s := fmt.Sprint(l)
		if s != "" {
			labels[i] = s[:len(s)-1]
		}
	}
	return frame.NewTable(table.Index(), frame.NewIndex(labels, table.Columns().Names()...), columnsOf(table))
}

func stackMetric(tables *seasonTables) (*Metric, error) {
	seasons := frame.StringIndex(tables.seasons...).Rename("Season")
	single := len(tables.types) == 1 && tables.types[0] == ""

	if single {
		perSeason := make([]*frame.Table, len(tables.seasons))
		ns := make([]any, len(tables.seasons))
		for i, season := range tables.seasons {
			perSeason[i] = tables.tables[season][""]
			ns[i] = tables.ns[season][""]
		}
		data, err := frame.StackTables(seasons, perSeason)
		if err != nil {
			return nil, err
		}
		return &Metric{Data: data, N: frame.NewSeries("n", seasons, ns)}, nil
	}

	panels := make([]*frame.Panel, len(tables.seasons))
	nData := make([][]any, len(tables.seasons))
	for i, season := range tables.seasons {
		var (
			kinds  []string
			frames []*frame.Table
		)
		for _, kind := range tables.types {
			if t, ok := tables.tables[season][kind]; ok {
				kinds = append(kinds, kind)
				frames = append(frames, t)
			}
		}
		panel, err := frame.StackTables(frame.StringIndex(kinds...).Rename("Table"), frames)
		if err != nil {
			return nil, err
		}
		panels[i] = panel

		nData[i] = make([]any, len(tables.types))
		for k, kind := range tables.types {
			nData[i][k] = tables.ns[season][kind]
		}
	}
	data, err := frame.StackPanels(seasons, panels)
	if err != nil {
		return nil, err
	}
	n := frame.NewTable(frame.StringIndex(tables.types...).Rename("Table"), seasons, nData)
	return &Metric{Data: data, N: n}, nil
}
