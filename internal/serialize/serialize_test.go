package serialize

import (
	"testing"

	"icingadb.dev/redisbridge/internal/ident"
	"icingadb.dev/redisbridge/internal/objects"
)

func TestPrepareServiceOverridesName(t *testing.T) {
	svc := objects.NewService("h1", "ping")
	attrs, _, relevant := Prepare("env1", svc)
	if !relevant {
		t.Fatal("expected service to be relevant")
	}
	if attrs["name"] != "ping" {
		t.Fatalf("expected service name override to short name, got %v", attrs["name"])
	}
}

func TestPrepareHostIncludesAddress(t *testing.T) {
	h := objects.NewHost("h1")
	h.Address_ = "10.0.0.1"
	attrs, _, relevant := Prepare("env1", h)
	if !relevant {
		t.Fatal("expected host to be relevant")
	}
	if attrs["name"] != "h1" || attrs["address"] != "10.0.0.1" {
		t.Fatalf("unexpected host attributes: %+v", attrs)
	}
}

func TestPrepareChecksumMatchesHashOfAttributes(t *testing.T) {
	h := objects.NewHost("h1")
	attrs, checksums, _ := Prepare("env1", h)
	want := ident.HashValue(map[string]interface{}(attrs))
	if checksums["checksum"] != want {
		t.Fatalf("checksum does not match hash of attributes")
	}
}

func TestPrepareUnknownTypeNotRelevant(t *testing.T) {
	_, _, relevant := Prepare("env1", unsupportedObject{})
	if relevant {
		t.Fatal("expected unrecognized object type to be irrelevant")
	}
}

type unsupportedObject struct{}

func (unsupportedObject) ObjectType() objects.Type          { return "unknown" }
func (unsupportedObject) FullName() string                  { return "x" }
func (unsupportedObject) Name() string                      { return "x" }
func (unsupportedObject) ZoneName() string                  { return "" }
func (unsupportedObject) CustomVars() map[string]string     { return nil }

func TestSerializeStateSplitsLongOutput(t *testing.T) {
	h := objects.NewHost("h1")
	h.State_ = objects.State{
		LastCheckResult: &objects.CheckResult{Output: "A\nB\nC"},
	}
	attrs := SerializeState("env1", h, nil)
	if attrs["output"] != "A" {
		t.Fatalf("expected output=A, got %v", attrs["output"])
	}
	if attrs["long_output"] != "B\nC" {
		t.Fatalf("expected long_output=B\\nC, got %v", attrs["long_output"])
	}
}

func TestSerializeStateIsHandledRequiresProblem(t *testing.T) {
	h := objects.NewHost("h1")
	h.State_ = objects.State{CurrentState: 0, InDowntime: true}
	attrs := SerializeState("env1", h, nil)
	if attrs["is_problem"] != false {
		t.Fatalf("state 0 must not be a problem")
	}
	if attrs["is_handled"] != false {
		t.Fatal("is_handled must be false when there is no problem, even in downtime")
	}
}

func TestSerializeStateIsHandledWhenProblemAndAcknowledged(t *testing.T) {
	h := objects.NewHost("h1")
	h.State_ = objects.State{CurrentState: 2, IsAcknowledged: true}
	attrs := SerializeState("env1", h, nil)
	if attrs["is_problem"] != true || attrs["is_handled"] != true {
		t.Fatalf("expected problem+handled, got problem=%v handled=%v", attrs["is_problem"], attrs["is_handled"])
	}
}

type fakeCommandTimeouts map[string]float64

func (f fakeCommandTimeouts) CommandTimeout(name string) (float64, bool) {
	t, ok := f[name]
	return t, ok
}

func TestSerializeStateFallsBackToCommandTimeoutWhenUnset(t *testing.T) {
	h := objects.NewHost("h1")
	h.CheckCommandName_ = "check_ping"
	h.State_ = objects.State{}

	commands := fakeCommandTimeouts{"check_ping": 42}
	attrs := SerializeState("env1", h, commands)
	if attrs["check_timeout"] != float64(42) {
		t.Fatalf("expected check_timeout to fall back to the command's timeout 42, got %v", attrs["check_timeout"])
	}
}

func TestSerializeStateKeepsOwnCheckTimeoutOverCommandFallback(t *testing.T) {
	h := objects.NewHost("h1")
	h.CheckCommandName_ = "check_ping"
	h.CheckTimeout_ = 15
	h.State_ = objects.State{}

	commands := fakeCommandTimeouts{"check_ping": 42}
	attrs := SerializeState("env1", h, commands)
	if attrs["check_timeout"] != float64(15) {
		t.Fatalf("expected the checkable's own check_timeout 15 to win, got %v", attrs["check_timeout"])
	}
}

func TestSerializeStateAcknowledgementPicksLatestEntryTime(t *testing.T) {
	c1 := objects.NewComment("ack-older")
	c1.EntryType = objects.EntryTypeAcknowledgement
	c1.EntryTime = 5
	c2 := objects.NewComment("ack-newer")
	c2.EntryType = objects.EntryTypeAcknowledgement
	c2.EntryTime = 10

	h := objects.NewHost("h1")
	h.State_ = objects.State{
		IsAcknowledged:          true,
		AcknowledgementComments: []*objects.Comment{c1, c2},
	}
	attrs := SerializeState("env1", h, nil)
	want := ident.ObjectID(c2.FullName())
	if attrs["acknowledgement_comment_id"] != want {
		t.Fatalf("expected latest-entry-time comment id %s, got %v", want, attrs["acknowledgement_comment_id"])
	}
}
