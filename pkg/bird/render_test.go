package bird

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlab-bird/pkg/model"
)

func strPtr(s string) *string { return &s }

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

func node(id, email string, ips ...string) model.Node {
	n := model.Node{ID: id, IPAddresses: ips}
	if email != "" {
		n.User.Email = strPtr(email)
	}
	return n
}

func mapping(email string, asn uint32, prefixes ...string) model.UserMapping {
	return model.UserMapping{UserHash: "h-" + email, UserID: email, Email: strPtr(email), ASN: asn, Prefixes: prefixes}
}

func TestRenderEnforceSingleUser(t *testing.T) {
	cfg := Render(
		[]model.Node{node("1", "a@x.com", "100.64.0.1", "fd7a:115c:a1e0::1")},
		[]model.UserMapping{mapping("a@x.com", 65001, "2001:db8::/32")},
		Options{Now: fixedNow},
	)

	want := Marker + "\n" +
		"# Generated at: 2026-03-01T12:30:00+00:00\n" +
		"\n" +
		"function enforce_user_policy(ip remote_ip) {\n" +
		"    # a@x.com (ASN 65001)\n" +
		"    if (remote_ip = 100.64.0.1) then {\n" +
		"        if (bgp_path.last != 65001) then reject;\n" +
		"        if (net !~ [ 2001:db8::/32 ]) then reject;\n" +
		"        accept;\n" +
		"    }\n" +
		"    reject;  # Unknown user\n" +
		"}\n"
	assert.Equal(t, want, cfg.Text)
	assert.Equal(t, Stats{Candidates: 1, Clauses: 1}, cfg.Stats)
}

func TestRenderEmptyPrefixesDeniesAll(t *testing.T) {
	cfg := Render(
		[]model.Node{node("1", "a@x.com", "100.64.0.1")},
		[]model.UserMapping{mapping("a@x.com", 65001)},
		Options{Now: fixedNow},
	)
	assert.Contains(t, cfg.Text, "    if (remote_ip = 100.64.0.1) then {\n"+
		"        if (bgp_path.last != 65001) then reject;\n"+
		"        # No authorized prefixes\n"+
		"        reject;\n"+
		"    }\n")
	assert.NotContains(t, cfg.Text, "accept;")
	assert.Equal(t, 1, cfg.Stats.EmptyPrefixUsers)
}

func TestRenderSkipsGaps(t *testing.T) {
	cfg := Render(
		[]model.Node{
			node("1", "", "100.64.0.1"),
			node("2", "noaddr@x.com", "10.1.1.1", "fd7a::2"),
			node("3", "unknown@x.com", "100.64.0.3"),
		},
		[]model.UserMapping{mapping("noaddr@x.com", 65002, "10.0.0.0/8")},
		Options{Now: fixedNow},
	)
	assert.NotContains(t, cfg.Text, "remote_ip =")
	assert.True(t, strings.HasSuffix(cfg.Text, "    reject;  # Unknown user\n}\n"))
	assert.Equal(t, Stats{Candidates: 2, MissingAddress: 1, MissingMapping: 1}, cfg.Stats)
}

func TestRenderPreservesNodeAndPrefixOrder(t *testing.T) {
	cfg := Render(
		[]model.Node{
			node("z", "b@x.com", "100.64.0.9"),
			node("a", "a@x.com", "100.64.0.2", "100.64.0.3"),
			node("m", "b@x.com", "100.64.0.10"),
		},
		[]model.UserMapping{
			mapping("a@x.com", 65000, "10.0.0.0/8"),
			mapping("b@x.com", 65001, "192.0.2.0/24", "2001:db8::/32", "198.51.100.0/24"),
			mapping("a@x.com", 65010, "10.9.0.0/16"),
		},
		Options{Now: fixedNow},
	)
	first := strings.Index(cfg.Text, "100.64.0.9")
	second := strings.Index(cfg.Text, "100.64.0.2")
	third := strings.Index(cfg.Text, "100.64.0.10")
	require.True(t, first > 0 && second > first && third > second, cfg.Text)
	assert.NotContains(t, cfg.Text, "100.64.0.3")
	assert.Contains(t, cfg.Text, "[ 192.0.2.0/24, 2001:db8::/32, 198.51.100.0/24 ]")
	assert.Contains(t, cfg.Text, "bgp_path.last != 65010")
	assert.NotContains(t, cfg.Text, "65000")
	assert.Equal(t, 2, strings.Count(cfg.Text, "bgp_path.last != 65001"))
	assert.Equal(t, 3, cfg.Stats.Clauses)
}

func TestRenderDeterministicBody(t *testing.T) {
	nodes := []model.Node{node("1", "a@x.com", "100.64.0.1"), node("2", "b@x.com", "100.64.0.2")}
	maps := []model.UserMapping{mapping("a@x.com", 65001, "10.0.0.0/8"), mapping("b@x.com", 65002)}
	one := Render(nodes, maps, Options{})
	two := Render(nodes, maps, Options{Now: func() time.Time { return fixedNow().Add(time.Hour) }})
	assert.NotEqual(t, one.Text, two.Text)
	assert.Equal(t, StripHeader(one.Text), StripHeader(two.Text))
	assert.True(t, strings.HasPrefix(StripHeader(one.Text), "function enforce_user_policy(ip remote_ip) {\n"))
}

func TestRenderASNMode(t *testing.T) {
	cfg := Render(
		[]model.Node{node("1", "a@x.com", "100.64.0.1")},
		[]model.UserMapping{mapping("a@x.com", 65001, "2001:db8::/32")},
		Options{Mode: ModeASN, Now: fixedNow},
	)
	assert.Equal(t, "function get_user_asn(ip remote_ip) {\n"+
		"    if (remote_ip = 100.64.0.1) then return 65001;  # a@x.com\n"+
		"    return 0;  # Unknown IP\n"+
		"}\n", StripHeader(cfg.Text))
}

func TestRenderSplitMode(t *testing.T) {
	cfg := Render(
		[]model.Node{node("1", "a@x.com", "100.64.0.1"), node("2", "b@x.com", "100.64.0.2")},
		[]model.UserMapping{mapping("a@x.com", 65001, "2001:db8::/32"), mapping("b@x.com", 65002)},
		Options{Mode: ModeSplit, Now: fixedNow},
	)
	body := StripHeader(cfg.Text)
	assert.Contains(t, body, "function check_user_asn(ip remote_ip) {\n")
	assert.Contains(t, body, "    if (remote_ip = 100.64.0.1) then return bgp_path.last = 65001;  # a@x.com\n")
	assert.Contains(t, body, "function check_user_prefix(ip remote_ip) {\n")
	assert.Contains(t, body, "    if (remote_ip = 100.64.0.1) then return net ~ [ 2001:db8::/32 ];  # a@x.com\n")
	assert.Contains(t, body, "    if (remote_ip = 100.64.0.2) then return false;  # b@x.com: no authorized prefixes\n")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeEnforce, "enforce": ModeEnforce, "ASN": ModeASN, " split ": ModeSplit} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("prefix")
	assert.Error(t, err)
}

func TestStripHeader(t *testing.T) {
	assert.Equal(t, "body\n", StripHeader(Marker+"\n# Generated at: x\n\nbody\n"))
	assert.Equal(t, "hand written\n", StripHeader("hand written\n"))
	assert.Equal(t, "# other\nbody\n", StripHeader("# other\nbody\n"))
	assert.Equal(t, "", StripHeader(Marker+"\n# Generated at: x"))
	assert.Equal(t, []byte("body"), StripHeaderBytes([]byte(Marker+"\n\nbody")))
}
