package remote

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/paramctl/internal/domain"
	"github.com/danmuck/paramctl/internal/engine"
	"github.com/danmuck/paramctl/internal/protocol"
)

const done = "Done"

// command is one entry of the dispatch table. maxArgs < 0 accepts any
// number of trailing arguments.
type command struct {
	name    string
	usage   string
	help    string
	minArgs int
	maxArgs int
	run     func(e *engine.Engine, args []string) (string, error)
}

// Commands dispatches requests onto an engine.
type Commands struct {
	engine *engine.Engine
	table  map[string]command
	order  []string
}

func NewCommands(e *engine.Engine) *Commands {
	c := &Commands{engine: e, table: make(map[string]command)}
	for _, cmd := range commandTable() {
		c.table[cmd.name] = cmd
		c.order = append(c.order, cmd.name)
	}
	c.table["help"] = command{name: "help", help: "List commands", run: func(*engine.Engine, []string) (string, error) {
		return c.helpText(), nil
	}}
	c.order = append([]string{"help"}, c.order...)
	return c
}

// Handle runs req and turns its outcome into an answer.
func (c *Commands) Handle(req protocol.RequestMessage) protocol.AnswerMessage {
	cmd, ok := c.table[req.Command]
	if !ok {
		return protocol.NewFailure(fmt.Sprintf("unknown command: %s (try help)", req.Command))
	}
	if len(req.Args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(req.Args) > cmd.maxArgs) {
		return protocol.NewFailure(fmt.Sprintf("usage: %s %s", cmd.name, cmd.usage))
	}
	out, err := cmd.run(c.engine, req.Args)
	if err != nil {
		return protocol.NewFailure(err.Error())
	}
	return protocol.NewSuccess(out)
}

// Known reports whether name is in the command table.
func (c *Commands) Known(name string) bool {
	_, ok := c.table[name]
	return ok
}

// Names lists the commands in help order.
func (c *Commands) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Commands) helpText() string {
	width := 0
	for _, name := range c.order {
		cmd := c.table[name]
		if n := len(strings.TrimSpace(cmd.name + " " + cmd.usage)); n > width {
			width = n
		}
	}
	var sb strings.Builder
	for _, name := range c.order {
		cmd := c.table[name]
		fmt.Fprintf(&sb, "%-*s  %s\n", width, strings.TrimSpace(cmd.name+" "+cmd.usage), cmd.help)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func lines(list []string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return strings.Join(list, "\n"), nil
}

func ok(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return done, nil
}

func formatSettings(settings []domain.Setting) string {
	out := make([]string, len(settings))
	for i, s := range settings {
		out[i] = s.Path + " = " + s.Value
	}
	return strings.Join(out, "\n")
}

// parseSettings reads "path=value" arguments.
func parseSettings(args []string) ([]domain.Setting, error) {
	out := make([]domain.Setting, 0, len(args))
	for _, a := range args {
		path, value, found := strings.Cut(a, "=")
		if !found || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("expected path=value, got %q", a)
		}
		out = append(out, domain.Setting{Path: strings.TrimSpace(path), Value: strings.TrimSpace(value)})
	}
	return out, nil
}

func formatStatus(st engine.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "System: %s (%d bytes)\n", st.System, st.Bytes)
	fmt.Fprintf(&sb, "Tuning mode: %s\n", onOff(st.Tuning))
	fmt.Fprintf(&sb, "Auto sync: %s\n", onOff(st.AutoSync))
	fmt.Fprintf(&sb, "Subsystems: %s\n", strings.Join(st.Subsystems, ", "))
	sb.WriteString("Criteria:\n")
	for _, name := range sortedKeys(st.Criteria) {
		fmt.Fprintf(&sb, "  %s = %s\n", name, st.Criteria[name])
	}
	sb.WriteString("Domains:\n")
	for _, name := range sortedKeys(st.Domains) {
		fmt.Fprintf(&sb, "  %s: %s\n", name, st.Domains[name])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func commandTable() []command {
	return []command{
		{name: "status", help: "Show engine status", run: func(e *engine.Engine, _ []string) (string, error) {
			return formatStatus(e.Status()), nil
		}},
		{name: "setTuningMode", usage: "on|off", help: "Enter or leave tuning mode", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			on, err := parseOnOff(a[0])
			if err != nil {
				return "", err
			}
			return ok(e.SetTuningMode(on))
		}},
		{name: "getTuningMode", help: "Show tuning mode", run: func(e *engine.Engine, _ []string) (string, error) {
			return onOff(e.TuningMode()), nil
		}},
		{name: "setAutoSync", usage: "on|off", help: "Push writes to backends immediately", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			on, err := parseOnOff(a[0])
			if err != nil {
				return "", err
			}
			return ok(e.SetAutoSync(on))
		}},
		{name: "getAutoSync", help: "Show auto sync", run: func(e *engine.Engine, _ []string) (string, error) {
			return onOff(e.AutoSync()), nil
		}},
		{name: "sync", usage: "[pull]", help: "Push the whole blackboard, optionally reading it back", maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			pull := false
			if len(a) == 1 {
				if a[0] != "pull" {
					return "", fmt.Errorf("unexpected argument %q", a[0])
				}
				pull = true
			}
			return ok(e.Sync(pull))
		}},
		{name: "listCriteria", help: "List selection criteria", run: func(e *engine.Engine, _ []string) (string, error) {
			return strings.Join(e.Criteria(), "\n"), nil
		}},
		{name: "getCriterionState", usage: "<criterion>", help: "Show a criterion state", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return e.CriterionState(a[0])
		}},
		{name: "setCriterionState", usage: "<criterion> <value>...", help: "Set a criterion state", minArgs: 2, maxArgs: -1, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.SetCriterionState(a[0], a[1:]...))
		}},
		{name: "applyConfigurations", help: "Run configuration selection", run: func(e *engine.Engine, _ []string) (string, error) {
			return ok(e.ApplyConfigurations())
		}},
		{name: "listDomains", help: "List domains and their state", run: func(e *engine.Engine, _ []string) (string, error) {
			return strings.Join(e.Domains(), "\n"), nil
		}},
		{name: "createDomain", usage: "<domain>", help: "Create a domain", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.CreateDomain(a[0]))
		}},
		{name: "deleteDomain", usage: "<domain>", help: "Delete a domain", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.DeleteDomain(a[0]))
		}},
		{name: "listConfigurations", usage: "<domain>", help: "List configurations, active one marked *", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return lines(e.Configurations(a[0]))
		}},
		{name: "createConfiguration", usage: "<domain> <configuration>", help: "Create a configuration", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.CreateConfiguration(a[0], a[1]))
		}},
		{name: "deleteConfiguration", usage: "<domain> <configuration>", help: "Delete a configuration", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.DeleteConfiguration(a[0], a[1]))
		}},
		{name: "saveConfiguration", usage: "<domain> <configuration>", help: "Store current values in a configuration", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.SaveConfiguration(a[0], a[1]))
		}},
		{name: "restoreConfiguration", usage: "<domain> <configuration>", help: "Apply a configuration (tuning mode)", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.RestoreConfiguration(a[0], a[1]))
		}},
		{name: "getConfigurationRule", usage: "<domain> <configuration>", help: "Show a configuration rule", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return e.ConfigurationRule(a[0], a[1])
		}},
		{name: "setConfigurationRule", usage: "<domain> <configuration> <rule>...", help: "Set a configuration rule, e.g. All{Mode Is Media}", minArgs: 2, maxArgs: -1, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.SetConfigurationRule(a[0], a[1], strings.Join(a[2:], " ")))
		}},
		{name: "addElement", usage: "<domain> <path>", help: "Give a domain an element", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.AddElement(a[0], a[1]))
		}},
		{name: "removeElement", usage: "<domain> <path>", help: "Take an element from a domain", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.RemoveElement(a[0], a[1]))
		}},
		{name: "listDomainElements", usage: "<domain>", help: "List a domain's elements", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return lines(e.DomainElements(a[0]))
		}},
		{name: "exportSettings", usage: "<domain> [configuration]", help: "Show stored settings, or current values without a configuration", minArgs: 1, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			conf := ""
			if len(a) == 2 {
				conf = a[1]
			}
			settings, err := e.ExportSettings(a[0], conf)
			if err != nil {
				return "", err
			}
			return formatSettings(settings), nil
		}},
		{name: "importSettings", usage: "<path=value>...", help: "Write values without syncing (tuning mode)", minArgs: 1, maxArgs: -1, run: func(e *engine.Engine, a []string) (string, error) {
			settings, err := parseSettings(a)
			if err != nil {
				return "", err
			}
			return ok(e.ImportSettings(settings))
		}},
		{name: "exportDomains", help: "Dump criteria and domains as YAML", run: func(e *engine.Engine, _ []string) (string, error) {
			doc, err := e.ExportDocument()
			if err != nil {
				return "", err
			}
			return string(doc), nil
		}},
		{name: "listElements", usage: "<path>", help: "List children of an element", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return lines(e.ListElements(a[0]))
		}},
		{name: "listParameters", usage: "<path>", help: "List parameters below an element", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return lines(e.ListParameters(a[0]))
		}},
		{name: "dumpElement", usage: "<path>", help: "Show a subtree with values", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			out, err := e.DumpElement(a[0])
			return strings.TrimRight(out, "\n"), err
		}},
		{name: "getElementSize", usage: "<path>", help: "Show an element's size in bytes", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			n, err := e.ElementSize(a[0])
			if err != nil {
				return "", err
			}
			return strconv.Itoa(n), nil
		}},
		{name: "showProperties", usage: "<path>", help: "Show an element's properties", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return lines(e.Properties(a[0]))
		}},
		{name: "getElementBytes", usage: "<path>", help: "Show an element's blackboard bytes in hex", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return e.ElementBytes(a[0])
		}},
		{name: "getParameter", usage: "<path>", help: "Show a parameter value", minArgs: 1, maxArgs: 1, run: func(e *engine.Engine, a []string) (string, error) {
			return e.GetParameter(a[0])
		}},
		{name: "setParameter", usage: "<path> <value>", help: "Set a parameter value (tuning mode)", minArgs: 2, maxArgs: 2, run: func(e *engine.Engine, a []string) (string, error) {
			return ok(e.SetParameter(a[0], a[1]))
		}},
	}
}
