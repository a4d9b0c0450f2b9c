// Package depend emits the auxiliary rows a configuration object requires
// beyond its own attribute row: custom variables, group memberships,
// shared URL/image rows, time-period ranges, zone parents, notification
// recipients, and command arguments/envvars.
package depend

import (
	"sort"

	"icingadb.dev/redisbridge/internal/ident"
	"icingadb.dev/redisbridge/internal/objects"
	"icingadb.dev/redisbridge/internal/serialize"
)

// SubRelation is one per-type auxiliary row: the row keyed by the owning
// object's id, plus its checksum.
type SubRelation struct {
	Attrs    serialize.Attributes
	Checksum serialize.Checksums
}

// SharedRow is one row in a typeless shared table, keyed by content hash of
// its value so identical values across objects collapse to a single row.
type SharedRow struct {
	ID    string
	Attrs serialize.Attributes
}

// Expansion collects every auxiliary row a single object's dependency
// expansion produces. Fields are nil/empty when the object's type does not
// carry that relation.
type Expansion struct {
	CustomVar              *SubRelation
	GroupMembers           *SubRelation
	Ranges                 *SubRelation
	Includes               *SubRelation
	Excludes               *SubRelation
	Parents                *SubRelation
	NotificationUsers      *SubRelation
	NotificationUserGroups *SubRelation
	Arguments              *SubRelation
	EnvVars                *SubRelation

	// SharedCustomVars is keyed by variable name, not content hash: the
	// source stores customvar rows by key, so identical names from
	// different objects intentionally collapse to the same row.
	SharedCustomVars map[string]string

	ActionURL       *SharedRow
	NotesURL        *SharedRow
	IconImage       *SharedRow
	CommandArgument map[string]string
	CommandEnvVar   map[string]string
	TimeRange       map[string]serialize.Attributes
}

// Expand computes every auxiliary row for obj. envID salts shared-table row
// ids so that identical values across environments never collide.
func Expand(envID string, obj objects.Object) Expansion {
	var exp Expansion

	if vars := obj.CustomVars(); len(vars) > 0 {
		exp.SharedCustomVars = make(map[string]string, len(vars))
		names := sortedKeys(vars)
		for _, k := range names {
			exp.SharedCustomVars[k] = vars[k]
		}
		exp.CustomVar = &SubRelation{
			Attrs:    serialize.Attributes{"env_id": envID, "customvars": names},
			Checksum: serialize.Checksums{"checksum": ident.HashValue(vars)},
		}
	}

	switch o := obj.(type) {
	case *objects.Host:
		expandCheckableURLs(&exp, envID, o)
		expandGroupMembers(&exp, envID, o.GroupIDs())
	case *objects.Service:
		expandCheckableURLs(&exp, envID, o)
		expandGroupMembers(&exp, envID, o.GroupIDs())
	case *objects.User:
		expandGroupMembers(&exp, envID, o.GroupIDs)
	case *objects.TimePeriod:
		expandTimePeriod(&exp, envID, o)
	case *objects.Zone:
		expandZone(&exp, envID, o)
	case *objects.Notification:
		expandNotification(&exp, envID, o)
	case *objects.Command:
		expandCommand(&exp, envID, o)
	}

	return exp
}

type checkableURLs interface {
	ActionURL() string
	NotesURL() string
	IconImage() string
}

func expandCheckableURLs(exp *Expansion, envID string, c checkableURLs) {
	if url := c.ActionURL(); url != "" {
		exp.ActionURL = &SharedRow{
			ID:    ident.RowID(envID, url),
			Attrs: serialize.Attributes{"env_id": envID, "action_url": url},
		}
	}
	if url := c.NotesURL(); url != "" {
		exp.NotesURL = &SharedRow{
			ID:    ident.RowID(envID, url),
			Attrs: serialize.Attributes{"env_id": envID, "notes_url": url},
		}
	}
	if img := c.IconImage(); img != "" {
		exp.IconImage = &SharedRow{
			ID:    ident.RowID(envID, img),
			Attrs: serialize.Attributes{"env_id": envID, "icon_image": img},
		}
	}
}

func expandGroupMembers(exp *Expansion, envID string, groupIDs []string) {
	if len(groupIDs) == 0 {
		return
	}
	exp.GroupMembers = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "groups": groupIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(groupIDs)},
	}
}

func expandTimePeriod(exp *Expansion, envID string, tp *objects.TimePeriod) {
	if len(tp.Ranges) > 0 {
		ids := make([]string, len(tp.Ranges))
		exp.TimeRange = make(map[string]serialize.Attributes, len(tp.Ranges))
		for i, r := range tp.Ranges {
			id := ident.RowID(envID, r.Key+"\x1f"+r.Value)
			ids[i] = id
			exp.TimeRange[id] = serialize.Attributes{
				"env_id":      envID,
				"range_key":   r.Key,
				"range_value": r.Value,
			}
		}
		exp.Ranges = &SubRelation{
			Attrs:    serialize.Attributes{"env_id": envID, "ranges": ids},
			Checksum: serialize.Checksums{"checksum": ident.HashValue(ids)},
		}
	}

	includeIDs := objectIDs(tp.IncludeNames)
	exp.Includes = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "includes": includeIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(includeIDs)},
	}

	excludeIDs := objectIDs(tp.ExcludeNames)
	exp.Excludes = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "excludes": excludeIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(excludeIDs)},
	}
}

// expandZone sets the zone's "parent" sub-relation to its transitive
// parents. The original source re-hashes the zone's own identifier here
// instead of its parents'; that is a defect (see the module's design
// notes) and is deliberately not replicated.
func expandZone(exp *Expansion, envID string, z *objects.Zone) {
	parentIDs := objectIDs(z.ParentNames)
	exp.Parents = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "parents": parentIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(z.ParentNames)},
	}
}

func expandNotification(exp *Expansion, envID string, n *objects.Notification) {
	userIDs := objectIDs(n.UserNames)
	exp.NotificationUsers = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "users": userIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(userIDs)},
	}

	groupIDs := objectIDs(n.UserGroupNames)
	exp.NotificationUserGroups = &SubRelation{
		Attrs:    serialize.Attributes{"env_id": envID, "usergroups": groupIDs},
		Checksum: serialize.Checksums{"checksum": ident.HashValue(groupIDs)},
	}
}

// expandCommand emits argument and envvar rows from two distinct maps. The
// original source reads GetArguments() for both tables; that double-read
// defect is not replicated here.
func expandCommand(exp *Expansion, envID string, cmd *objects.Command) {
	if len(cmd.Arguments) > 0 {
		ids := make([]string, 0, len(cmd.Arguments))
		exp.CommandArgument = make(map[string]string, len(cmd.Arguments))
		for _, k := range sortedKeys(cmd.Arguments) {
			v := cmd.Arguments[k]
			id := ident.HashString(k + ident.HashValue(v))
			ids = append(ids, id)
			exp.CommandArgument[id] = v
		}
		exp.Arguments = &SubRelation{
			Attrs:    serialize.Attributes{"env_id": envID, "arguments": ids},
			Checksum: serialize.Checksums{"checksum": ident.HashValue(ids)},
		}
	}

	if len(cmd.Envvars) > 0 {
		ids := make([]string, 0, len(cmd.Envvars))
		exp.CommandEnvVar = make(map[string]string, len(cmd.Envvars))
		for _, k := range sortedKeys(cmd.Envvars) {
			v := cmd.Envvars[k]
			id := ident.HashString(k + ident.HashValue(v))
			ids = append(ids, id)
			exp.CommandEnvVar[id] = v
		}
		exp.EnvVars = &SubRelation{
			Attrs:    serialize.Attributes{"env_id": envID, "envvars": ids},
			Checksum: serialize.Checksums{"checksum": ident.HashValue(ids)},
		}
	}
}

func objectIDs(names []string) []string {
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = ident.ObjectID(n)
	}
	return ids
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
