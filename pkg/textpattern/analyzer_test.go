package textpattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

func testRoster() *hearing.CandidateRoster {
	return &hearing.CandidateRoster{
		HearingID: "sjud-2026-03-14",
		Entries: []hearing.RosterEntry{
			{Name: "Dick Durbin", Role: hearing.RoleChair, State: "Illinois"},
			{Name: "Ted Cruz", Role: hearing.RoleRanking, State: "Texas", Aliases: []string{"Rafael Edward Cruz"}},
			{Name: "Amy Klobuchar", Role: hearing.RoleMember, State: "Minnesota"},
			{Name: "Jane Smith", Role: hearing.RoleWitness},
		},
	}
}

func TestAnalyzeTitledSurname(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	matches := a.Analyze("Thank you, Senator Cruz, for that question.", testRoster())
	require.NotEmpty(t, matches)

	assert.Equal(t, "Ted Cruz", matches[0].Entry.Name)
	assert.Equal(t, MatchIdentity, matches[0].Kind)
	assert.InDelta(t, 0.65, matches[0].Confidence, 1e-9)
	assert.Equal(t, "senator cruz", matches[0].Pattern)
}

func TestAnalyzeRepeatMentionBoost(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	matches := a.Analyze("Senator Cruz raised this before. Senator Cruz, your time.", testRoster())
	require.NotEmpty(t, matches)
	assert.Equal(t, "Ted Cruz", matches[0].Entry.Name)
	assert.InDelta(t, 0.75, matches[0].Confidence, 1e-9)
}

func TestAnalyzeConfidenceCap(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	text := "Senator Cruz. Senator Cruz. Senator Cruz. Senator Cruz. Senator Cruz. Senator Cruz."
	matches := a.Analyze(text, testRoster())
	require.NotEmpty(t, matches)
	assert.InDelta(t, 0.90, matches[0].Confidence, 1e-9)
}

func TestAnalyzeAliasMention(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	matches := a.Analyze("The record will reflect remarks by Rafael Edward Cruz.", testRoster())
	require.NotEmpty(t, matches)
	assert.Equal(t, "Ted Cruz", matches[0].Entry.Name)
	assert.Equal(t, MatchIdentity, matches[0].Kind)
}

func TestAnalyzeStateAddress(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	matches := a.Analyze("I yield to the gentleman from Texas.", testRoster())
	require.NotEmpty(t, matches)
	assert.Equal(t, "Ted Cruz", matches[0].Entry.Name)
	assert.Equal(t, MatchIdentity, matches[0].Kind)
}

func TestAnalyzeStateAddressAmbiguous(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	roster := testRoster()
	roster.Entries = append(roster.Entries, hearing.RosterEntry{
		Name: "John Cornyn", Role: hearing.RoleMember, State: "Texas",
	})

	// Two Texans: the address no longer identifies anyone
	matches := a.Analyze("I yield to the gentleman from Texas.", roster)
	assert.Empty(t, matches)
}

func TestAnalyzeRoleCues(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	roster := testRoster()

	tests := []struct {
		text    string
		speaker string
	}{
		{"This hearing will come to order.", "Dick Durbin"},
		{"The chair recognizes the senator from Minnesota.", "Dick Durbin"},
		{"As ranking member, I have concerns about this bill.", "Ted Cruz"},
		{"As I noted in my written testimony, the data is clear.", "Jane Smith"},
	}

	for _, tt := range tests {
		matches := a.Analyze(tt.text, roster)
		require.NotEmpty(t, matches, "text: %s", tt.text)

		var role *Match
		for i := range matches {
			if matches[i].Kind == MatchRole {
				role = &matches[i]
				break
			}
		}
		require.NotNil(t, role, "text: %s", tt.text)
		assert.Equal(t, tt.speaker, role.Entry.Name, "text: %s", tt.text)
		assert.InDelta(t, 0.35, role.Confidence, 1e-9)
	}
}

func TestAnalyzeRoleCueAmbiguousRole(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	roster := testRoster()
	roster.Entries = append(roster.Entries, hearing.RosterEntry{
		Name: "John Witness", Role: hearing.RoleWitness,
	})

	// Two witnesses: testimony language narrows nothing
	matches := a.Analyze("In my written testimony I covered this.", roster)
	assert.Empty(t, matches)
}

func TestAnalyzeIdentityOutranksRole(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	matches := a.Analyze("The chair recognizes Senator Klobuchar.", testRoster())
	require.GreaterOrEqual(t, len(matches), 2)

	assert.Equal(t, MatchIdentity, matches[0].Kind)
	assert.Equal(t, "Amy Klobuchar", matches[0].Entry.Name)
	assert.Equal(t, MatchRole, matches[1].Kind)
	assert.Equal(t, "Dick Durbin", matches[1].Entry.Name)
}

func TestAnalyzeNoCues(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	assert.Empty(t, a.Analyze("The budget numbers speak for themselves.", testRoster()))
	assert.Empty(t, a.Analyze("", testRoster()))
	assert.Empty(t, a.Analyze("Senator Cruz", &hearing.CandidateRoster{}))
	assert.Empty(t, a.Analyze("Senator Cruz", nil))
}

func TestAnalyzeSurnameSuffix(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	roster := &hearing.CandidateRoster{Entries: []hearing.RosterEntry{
		{Name: "Henry Johnson Jr.", Role: hearing.RoleMember},
	}}

	matches := a.Analyze("I thank Congressman Johnson for yielding.", roster)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Henry Johnson Jr.", matches[0].Entry.Name)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.RoleBaseConfidence = 0.7
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxConfidence = 0.5
	assert.Error(t, bad.Validate())
}
