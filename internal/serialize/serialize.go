// Package serialize projects typed monitoring objects into the flat
// attribute and checksum mappings the replication engine writes to Redis,
// and turns a checkable's live status into a state-row snapshot.
package serialize

import (
	"strings"
	"time"

	"icingadb.dev/redisbridge/internal/ident"
	"icingadb.dev/redisbridge/internal/objects"
)

// Attributes is the JSON-serializable attribute mapping for one object.
type Attributes map[string]interface{}

// Checksums is the JSON-serializable checksum mapping for one object; it
// always carries exactly the "checksum" field.
type Checksums map[string]interface{}

// Now returns the wall-clock seconds used for the state row's last_update
// field. It is a variable, not a direct time.Now call, so tests can pin it.
var Now func() float64

func now() float64 {
	if Now != nil {
		return Now()
	}
	return float64(time.Now().UnixNano()) / 1e9
}

// Prepare projects obj into its attribute and checksum mapping. relevant is
// false for object types the replication engine does not persist, mirroring
// the source's "is_relevant" skip semantics.
func Prepare(envID string, obj objects.Object) (attrs Attributes, checksums Checksums, relevant bool) {
	attrs = Attributes{
		"name_checksum": ident.HashString(obj.Name()),
		"env_id":        envID,
		"name":          obj.Name(),
	}
	if zone := obj.ZoneName(); zone != "" {
		attrs["zone_id"] = ident.ObjectID(zone)
		attrs["zone"] = zone
	}

	switch o := obj.(type) {
	case *objects.Host:
		populateCheckable(attrs, o)
		attrs["display_name"] = o.DisplayName()
		attrs["address"] = o.Address()
		attrs["address6"] = o.Address6()
	case *objects.Service:
		populateCheckable(attrs, o)
		attrs["host_id"] = o.HostID()
		attrs["display_name"] = o.DisplayName()
		attrs["name"] = o.Name()
	case *objects.User:
		attrs["display_name"] = o.DisplayName
		attrs["email"] = o.Email
		attrs["pager"] = o.Pager
		attrs["states"] = o.States
		attrs["types"] = o.Types
		if o.PeriodName != "" {
			attrs["period_id"] = o.PeriodID
		}
	case *objects.Group:
		attrs["display_name"] = o.DisplayName
	case *objects.Command:
		attrs["timeout"] = o.Timeout
	case *objects.TimePeriod:
		attrs["display_name"] = o.DisplayName
		attrs["prefer_includes"] = o.PreferIncludes
	case *objects.Zone:
		attrs["is_global"] = o.IsGlobal
		if len(o.ParentNames) > 0 {
			attrs["parent_id"] = ident.ObjectID(o.ParentNames[0])
		}
	case *objects.Endpoint:
		// identity only; the base fields above are sufficient.
	case *objects.Notification:
		attrs["host_id"] = o.HostID
		attrs["command_id"] = o.CommandID
		if o.ServiceID != "" {
			attrs["service_id"] = o.ServiceID
		}
		if o.PeriodID != "" {
			attrs["period_id"] = o.PeriodID
		}
		if o.HasTimes {
			attrs["times_begin"] = o.TimesBegin
			attrs["times_end"] = o.TimesEnd
		}
		attrs["states"] = o.States
		attrs["types"] = o.Types
	case *objects.Comment:
		attrs["author"] = o.Author
		attrs["text"] = o.Text
		attrs["entry_type"] = int(o.EntryType)
		attrs["entry_time"] = o.EntryTime
		attrs["is_persistent"] = o.IsPersistent
		attrs["expire_time"] = o.ExpireTime
		if o.ServiceScoped {
			attrs["service_id"] = o.ServiceID
		} else {
			attrs["host_id"] = o.HostID
		}
	case *objects.Downtime:
		attrs["author"] = o.Author
		attrs["comment"] = o.Comment
		attrs["entry_time"] = o.EntryTime
		attrs["start_time"] = o.StartTime
		attrs["end_time"] = o.EndTime
		attrs["duration"] = o.Duration
		attrs["is_fixed"] = o.IsFixed
		attrs["is_in_effect"] = o.IsInEffect
		if o.IsInEffect {
			attrs["actual_start_time"] = o.TriggerTime
		}
		if o.ServiceScoped {
			attrs["service_id"] = o.ServiceID
		} else {
			attrs["host_id"] = o.HostID
		}
	default:
		return nil, nil, false
	}

	checksums = Checksums{"checksum": ident.HashValue(map[string]interface{}(attrs))}
	return attrs, checksums, true
}

// checkableAccessor narrows objects.Checkable to the fields Prepare needs,
// so Host and Service can share one populateCheckable body.
type checkableAccessor interface {
	CheckCommandName() string
	CheckCommandID() string
	MaxCheckAttempts() int
	CheckTimeout() float64
	CheckInterval() float64
	RetryInterval() float64
	ActiveChecksEnabled() bool
	PassiveChecksEnabled() bool
	EventHandlerEnabled() bool
	NotificationsEnabled() bool
	FlappingEnabled() bool
	FlappingThresholdLow() float64
	FlappingThresholdHigh() float64
	PerfdataEnabled() bool
	Volatile() bool
	Notes() string
	IconImageAlt() string
	CommandEndpoint() (id, name string, ok bool)
	CheckPeriod() (id, name string, ok bool)
	EventCommand() (id, name string, ok bool)
	ActionURL() string
	NotesURL() string
	IconImage() string
}

func populateCheckable(attrs Attributes, c checkableAccessor) {
	attrs["checkcommand"] = c.CheckCommandName()
	attrs["checkcommand_id"] = c.CheckCommandID()
	attrs["max_check_attempts"] = c.MaxCheckAttempts()
	attrs["check_timeout"] = c.CheckTimeout()
	attrs["check_interval"] = c.CheckInterval()
	attrs["check_retry_interval"] = c.RetryInterval()
	attrs["active_checks_enabled"] = c.ActiveChecksEnabled()
	attrs["passive_checks_enabled"] = c.PassiveChecksEnabled()
	attrs["event_handler_enabled"] = c.EventHandlerEnabled()
	attrs["notifications_enabled"] = c.NotificationsEnabled()
	attrs["flapping_enabled"] = c.FlappingEnabled()
	attrs["flapping_threshold_low"] = c.FlappingThresholdLow()
	attrs["flapping_threshold_high"] = c.FlappingThresholdHigh()
	attrs["perfdata_enabled"] = c.PerfdataEnabled()
	attrs["is_volatile"] = c.Volatile()
	attrs["notes"] = c.Notes()
	attrs["icon_image_alt"] = c.IconImageAlt()

	if id, name, ok := c.CommandEndpoint(); ok {
		attrs["command_endpoint_id"] = id
		attrs["command_endpoint"] = name
	}
	if id, name, ok := c.CheckPeriod(); ok {
		attrs["check_period_id"] = id
		attrs["check_period"] = name
	}
	if id, name, ok := c.EventCommand(); ok {
		attrs["eventcommand_id"] = id
		attrs["eventcommand"] = name
	}
}

// CommandTimeoutLookup resolves a check, event, or notification command's
// configured timeout by name. source.Registry satisfies this interface;
// it is declared narrowly here so serialize does not need to import source.
type CommandTimeoutLookup interface {
	CommandTimeout(name string) (timeout float64, ok bool)
}

// SerializeState populates the checkable's live status snapshot, matching
// the wire shape consumers read from icinga:state:<type> and the state
// streams. commands resolves the check command's own timeout when the
// checkable's check_timeout override is unset (0); pass nil to skip the
// fallback (checkTimeout stays 0 in that case).
func SerializeState(envID string, c objects.Checkable, commands CommandTimeoutLookup) Attributes {
	st := c.State()
	attrs := Attributes{
		"id":           c.CheckableID(),
		"env_id":       envID,
		"state_type":   int(st.StateType),
		"state":        st.CurrentState,
		"last_soft_state": st.LastSoftState,
		"last_hard_state": st.LastHardState,
		"severity":        st.Severity,
		"check_attempt":   st.CheckAttempt,
		"is_active":       st.IsActive,
	}

	if cr := st.LastCheckResult; cr != nil {
		if cr.Output != "" {
			line := cr.Output
			if idx := strings.IndexByte(line, '\n'); idx >= 0 {
				output := line[:idx]
				if output != "" {
					attrs["output"] = output
				}
				rest := line[idx+1:]
				if rest != "" {
					attrs["long_output"] = rest
				}
			} else {
				attrs["output"] = line
			}
		}
		if cr.PerformanceData != "" {
			attrs["performance_data"] = cr.PerformanceData
		}
		if cr.CommandLine != "" {
			attrs["commandline"] = cr.CommandLine
		}
		attrs["execution_time"] = cr.ExecutionTime
		attrs["latency"] = cr.Latency
	}

	isProblem := st.CurrentState != 0
	attrs["is_problem"] = isProblem
	attrs["is_handled"] = isProblem && (st.InDowntime || st.IsAcknowledged)
	attrs["is_reachable"] = st.IsReachable
	attrs["is_flapping"] = st.IsFlapping
	attrs["is_acknowledged"] = st.IsAcknowledged

	if st.IsAcknowledged {
		if ackID := latestAcknowledgementComment(st.AcknowledgementComments); ackID != "" {
			attrs["acknowledgement_comment_id"] = ackID
		}
	}

	attrs["in_downtime"] = st.InDowntime

	checkTimeout := c.CheckTimeout()
	if checkTimeout == 0 && commands != nil {
		if t, ok := commands.CommandTimeout(c.CheckCommandName()); ok {
			checkTimeout = t
		}
	}
	attrs["check_timeout"] = checkTimeout

	attrs["last_update"] = now()
	attrs["last_state_change"] = st.LastStateChange
	attrs["next_check"] = st.NextCheck

	return attrs
}

func latestAcknowledgementComment(comments []*objects.Comment) string {
	var latest *objects.Comment
	for _, c := range comments {
		if c.EntryType != objects.EntryTypeAcknowledgement {
			continue
		}
		if latest == nil || c.EntryTime > latest.EntryTime {
			latest = c
		}
	}
	if latest == nil {
		return ""
	}
	return ident.ObjectID(latest.FullName())
}
