package depend

import (
	"testing"

	"icingadb.dev/redisbridge/internal/ident"
	"icingadb.dev/redisbridge/internal/objects"
)

func TestExpandCustomVarsKeyedByName(t *testing.T) {
	h := objects.NewHost("h1")
	h.Vars = map[string]string{"os": "linux", "env": "prod"}

	exp := Expand("env1", h)
	if exp.CustomVar == nil {
		t.Fatal("expected customvar sub-relation")
	}
	if exp.SharedCustomVars["os"] != "linux" || exp.SharedCustomVars["env"] != "prod" {
		t.Fatalf("expected shared customvar rows keyed by name, got %+v", exp.SharedCustomVars)
	}
}

func TestExpandSharedURLRowIDCollapsesAcrossObjects(t *testing.T) {
	h1 := objects.NewHost("h1")
	h1.ActionURL_ = "/foo"
	h2 := objects.NewHost("h2")
	h2.ActionURL_ = "/foo"

	exp1 := Expand("env1", h1)
	exp2 := Expand("env1", h2)

	if exp1.ActionURL == nil || exp2.ActionURL == nil {
		t.Fatal("expected action_url rows")
	}
	if exp1.ActionURL.ID != exp2.ActionURL.ID {
		t.Fatal("identical action_url values across objects must collapse to one row id")
	}
	want := ident.RowID("env1", "/foo")
	if exp1.ActionURL.ID != want {
		t.Fatalf("expected row id %s, got %s", want, exp1.ActionURL.ID)
	}
}

func TestExpandGroupMembersAbsentWhenNoGroups(t *testing.T) {
	h := objects.NewHost("h1")
	exp := Expand("env1", h)
	if exp.GroupMembers != nil {
		t.Fatal("expected no groupmember row for a host with no groups")
	}
}

func TestExpandZoneUsesTrueParentNotSelf(t *testing.T) {
	z := objects.NewZone("child")
	z.ParentNames = []string{"parent"}

	exp := Expand("env1", z)
	if exp.Parents == nil {
		t.Fatal("expected parent sub-relation")
	}
	ids := exp.Parents.Attrs["parents"].([]string)
	if len(ids) != 1 || ids[0] != ident.ObjectID("parent") {
		t.Fatalf("expected parent's own id, not the zone's, got %v", ids)
	}
}

func TestExpandTimePeriodRangeIDsAreOrderPreserving(t *testing.T) {
	tp := objects.NewTimePeriod("24x7")
	tp.Ranges = []objects.TimeRange{
		{Key: "monday", Value: "09:00-17:00"},
		{Key: "tuesday", Value: "09:00-17:00"},
	}

	exp := Expand("env1", tp)
	ids := exp.Ranges.Attrs["ranges"].([]string)
	if len(ids) != 2 {
		t.Fatalf("expected 2 range ids, got %d", len(ids))
	}
	if len(exp.TimeRange) != 2 {
		t.Fatalf("expected 2 timerange rows, got %d", len(exp.TimeRange))
	}
	for i, want := range []string{"monday", "tuesday"} {
		if got := exp.TimeRange[ids[i]]["range_key"]; got != want {
			t.Fatalf("range id %d: expected the %s row, got %v", i, want, got)
		}
	}
}

func TestExpandCommandArgumentAndEnvVarUseDistinctAccessors(t *testing.T) {
	cmd := objects.NewCommand(objects.TypeCheckCommand, "check_http")
	cmd.Arguments = map[string]string{"-H": "$address$"}
	cmd.Envvars = map[string]string{"HTTP_PROXY": "$proxy$"}

	exp := Expand("env1", cmd)
	if len(exp.CommandArgument) != 1 || len(exp.CommandEnvVar) != 1 {
		t.Fatalf("expected one argument row and one envvar row, got args=%d envvars=%d",
			len(exp.CommandArgument), len(exp.CommandEnvVar))
	}
	for _, v := range exp.CommandArgument {
		if v != "$address$" {
			t.Fatalf("argument row leaked envvar value: %s", v)
		}
	}
	for _, v := range exp.CommandEnvVar {
		if v != "$proxy$" {
			t.Fatalf("envvar row leaked argument value: %s", v)
		}
	}
}

func TestExpandNotificationUsersAndUserGroups(t *testing.T) {
	n := objects.NewNotification("n1")
	n.UserNames = []string{"alice", "bob"}
	n.UserGroupNames = []string{"oncall"}

	exp := Expand("env1", n)
	userIDs := exp.NotificationUsers.Attrs["users"].([]string)
	groupIDs := exp.NotificationUserGroups.Attrs["usergroups"].([]string)
	if len(userIDs) != 2 || len(groupIDs) != 1 {
		t.Fatalf("expected 2 users and 1 usergroup, got %d/%d", len(userIDs), len(groupIDs))
	}
}
