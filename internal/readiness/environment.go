package readiness

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

var (
	hostAgentPattern  = regexp.MustCompile(`(?i)feishu|lark`)
	hostDomainPattern = regexp.MustCompile(`(?i)feishu\.cn|larkoffice\.com|bytedance\.com`)
	docContextPattern = regexp.MustCompile(`(?i)wiki|docx`)
	tableContextHint  = regexp.MustCompile(`(?i)table|bitable`)
)

// Hints are heuristics about the surrounding host context.
type Hints struct {
	Location    string
	Hostname    string
	Agent       string
	AgentMatch  bool
	DomainMatch bool
}

// InHost reports whether any heuristic suggests a supported host.
func (h Hints) InHost() bool {
	return h.AgentMatch || h.DomainMatch
}

// DetectEnvironment inspects env. A nil env yields empty hints.
func DetectEnvironment(env host.Environment) Hints {
	if env == nil {
		return Hints{}
	}
	h := Hints{
		Location: env.Location(),
		Agent:    env.Agent(),
	}
	if u, err := url.Parse(h.Location); err == nil {
		h.Hostname = u.Hostname()
	}
	h.AgentMatch = hostAgentPattern.MatchString(h.Agent)
	h.DomainMatch = hostDomainPattern.MatchString(h.Hostname)
	return h
}

// Classify maps the panel location to a readiness failure classification.
// A document or wiki page that is not a table view is the usual wrong-context case.
func Classify(location string) string {
	if docContextPattern.MatchString(location) && !tableContextHint.MatchString(location) {
		return errors.ClassWrongContext
	}
	return errors.ClassGeneric
}

// Advice returns Markdown guidance for a readiness failure classification.
func Advice(class string) string {
	var b strings.Builder
	b.WriteString("The host data API did not become available.\n\n")
	b.WriteString("Possible causes:\n\n")
	b.WriteString("1. A network problem kept the host SDK from loading\n")
	b.WriteString("2. The panel was opened outside a table view\n\n")
	if class == errors.ClassWrongContext {
		b.WriteString("**This looks like a wiki or document page.** Open the panel from a table instead.\n\n")
	}
	b.WriteString("Try:\n\n")
	b.WriteString("- reload the panel\n")
	b.WriteString("- check the network connection\n")
	b.WriteString("- open the panel from a table view\n")
	return b.String()
}
