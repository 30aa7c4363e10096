package bird

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"peerlab-bird/pkg/logging"
	"peerlab-bird/pkg/model"
)

// Mode selects the shape of the generated filter program.
type Mode string

const (
	// ModeASN emits get_user_asn(ip) returning the ASN of the user behind an address.
	ModeASN Mode = "asn"
	// ModeSplit emits separate check_user_asn(ip) and check_user_prefix(ip) predicates.
	ModeSplit Mode = "split"
	// ModeEnforce emits a single enforce_user_policy(ip) that accepts or rejects routes.
	ModeEnforce Mode = "enforce"
)

// ParseMode maps a config string to a Mode; "" selects ModeEnforce.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeEnforce:
		return ModeEnforce, nil
	case ModeASN:
		return ModeASN, nil
	case ModeSplit:
		return ModeSplit, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want asn|split|enforce)", s)
	}
}

// Options tunes Render. The zero value renders ModeEnforce stamped with time.Now.
type Options struct {
	Mode   Mode
	Now    func() time.Time
	Logger *slog.Logger
}

// Stats summarizes one rendering.
type Stats struct {
	Candidates       int
	Clauses          int
	MissingAddress   int
	MissingMapping   int
	EmptyPrefixUsers int
}

// Config contains rendered BIRD configuration.
type Config struct {
	Text  string
	Stats Stats
}

// clause is one authorized user bound to a tailnet address.
type clause struct {
	ip      string
	email   string
	mapping model.UserMapping
}

// Render builds the BIRD filter program for the given nodes and mappings.
// Clauses follow the order of nodes; nothing is sorted.
func Render(nodes []model.Node, mappings []model.UserMapping, opts Options) Config {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeEnforce
	}

	byEmail := model.MappingsByEmail(mappings)
	var st Stats
	var clauses []clause
	for _, n := range nodes {
		if !n.HasUserEmail() {
			continue
		}
		st.Candidates++
		email := n.Email()
		ip, ok := n.IPv4()
		if !ok {
			st.MissingAddress++
			log.Warn("node has no tailnet IPv4 address", "node", n.ID, "email", email)
			continue
		}
		m, ok := byEmail[email]
		if !ok {
			st.MissingMapping++
			log.Warn("no mapping found for user", "email", email, "node", n.ID)
			continue
		}
		if len(m.Prefixes) == 0 {
			st.EmptyPrefixUsers++
			log.Warn("user has no authorized prefixes", "email", email, "asn", m.ASN)
		}
		clauses = append(clauses, clause{ip: ip, email: email, mapping: m})
	}
	st.Clauses = len(clauses)
	log.Info("rendered peerlab user policy", "mode", string(mode), "candidates", st.Candidates, "clauses", st.Clauses)

	var b strings.Builder
	writeHeader(&b, now())
	switch mode {
	case ModeASN:
		renderASN(&b, clauses)
	case ModeSplit:
		renderSplit(&b, clauses)
	default:
		renderEnforce(&b, clauses)
	}
	return Config{Text: b.String(), Stats: st}
}

func renderASN(b *strings.Builder, clauses []clause) {
	b.WriteString("function get_user_asn(ip remote_ip) {\n")
	for _, c := range clauses {
		fmt.Fprintf(b, "    if (remote_ip = %s) then return %d;  # %s\n", c.ip, c.mapping.ASN, c.email)
	}
	b.WriteString("    return 0;  # Unknown IP\n")
	b.WriteString("}\n")
}

func renderSplit(b *strings.Builder, clauses []clause) {
	b.WriteString("function check_user_asn(ip remote_ip) {\n")
	for _, c := range clauses {
		fmt.Fprintf(b, "    if (remote_ip = %s) then return bgp_path.last = %d;  # %s\n", c.ip, c.mapping.ASN, c.email)
	}
	b.WriteString("    return false;  # Unknown IP\n")
	b.WriteString("}\n\n")

	b.WriteString("function check_user_prefix(ip remote_ip) {\n")
	for _, c := range clauses {
		if len(c.mapping.Prefixes) == 0 {
			fmt.Fprintf(b, "    if (remote_ip = %s) then return false;  # %s: no authorized prefixes\n", c.ip, c.email)
			continue
		}
		fmt.Fprintf(b, "    if (remote_ip = %s) then return net ~ %s;  # %s\n", c.ip, prefixSet(c.mapping.Prefixes), c.email)
	}
	b.WriteString("    return false;  # Unknown IP\n")
	b.WriteString("}\n")
}

func renderEnforce(b *strings.Builder, clauses []clause) {
	b.WriteString("function enforce_user_policy(ip remote_ip) {\n")
	for _, c := range clauses {
		fmt.Fprintf(b, "    # %s (ASN %d)\n", c.email, c.mapping.ASN)
		fmt.Fprintf(b, "    if (remote_ip = %s) then {\n", c.ip)
		fmt.Fprintf(b, "        if (bgp_path.last != %d) then reject;\n", c.mapping.ASN)
		if len(c.mapping.Prefixes) == 0 {
			b.WriteString("        # No authorized prefixes\n")
			b.WriteString("        reject;\n")
		} else {
			fmt.Fprintf(b, "        if (net !~ %s) then reject;\n", prefixSet(c.mapping.Prefixes))
			b.WriteString("        accept;\n")
		}
		b.WriteString("    }\n")
	}
	b.WriteString("    reject;  # Unknown user\n")
	b.WriteString("}\n")
}

// prefixSet renders a BIRD set literal, keeping prefixes in the given order.
func prefixSet(prefixes []string) string {
	return "[ " + strings.Join(prefixes, ", ") + " ]"
}
