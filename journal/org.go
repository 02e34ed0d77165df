package journal

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
	"time"
)

var runOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// Org renders the run as an Org-mode section.
func (r *Run) Org() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := runOrg.Execute(buf, r); err != nil {
		return nil, fmt.Errorf("journal: render org: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteOrg writes the Org report to path, or to r.OrgPath when path is empty.
func (r *Run) WriteOrg(path string) error {
	if path == "" {
		path = r.OrgPath
	}
	if path == "" {
		return fmt.Errorf("journal: no org path for run %s", r.RunID)
	}
	b, err := r.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

const RunOrgTemplate = `
* BACKTEST: Grid {{.Symbol}} {{.Side}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:TEMPLATE:    {{.TemplateID}}
:SYMBOL:      {{.Symbol}}
:SIDE:        {{.Side}}
:LEVELS:      {{.Levels}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_CAP:   {{.StartCapital.StringFixed 2}}
:END_CAP:     {{.EndCapital.StringFixed 2}}
:NET_PNL:     {{.NetPnL.StringFixed 2}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
:SHARPE:      {{printf "%.2f" .Sharpe}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Grid
{{- if .Config }}
#+begin_src json
{{printf "%s" .Config}}
#+end_src
{{- else }}
# (template not recorded)
{{- end }}

** Performance Summary
- Net P/L:          *{{.NetPnL.StringFixed 2}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Profit Factor:    *{{printf "%.2f" .ProfitFactor}}*
- Levels:           *{{.LevelsCompleted}} of {{.LevelsTriggered}} triggered completed*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
