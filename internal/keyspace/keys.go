// Package keyspace names every Redis key, shared table, and pub/sub channel
// the bridge writes to, so the layout lives in exactly one place.
package keyspace

import "strings"

const (
	configPrefix   = "icinga:config:"
	statePrefix    = "icinga:state:"
	checksumPrefix = "icinga:checksum:"
	streamPrefix   = "icinga:state:stream:"
	ChannelDump    = "icinga:config:dump"
	ChannelUpdate  = "icinga:config:update"
	ChannelDelete  = "icinga:config:delete"
)

// Shared (typeless) tables: their rows are keyed by a row id, never by
// object id, so identical values across objects collapse to one row.
const (
	TableCustomVar       = "customvar"
	TableActionURL       = "action_url"
	TableNotesURL        = "notes_url"
	TableIconImage       = "icon_image"
	TableCommandArgument = "commandargument"
	TableCommandEnvVar   = "commandenvvar"
	TableTimeRange       = "timerange"
)

// SharedTables lists every shared table, in the order the full dump deletes
// and recreates them.
var SharedTables = []string{
	TableCustomVar,
	TableActionURL,
	TableNotesURL,
	TableIconImage,
	TableCommandArgument,
	TableCommandEnvVar,
	TableTimeRange,
}

// Config returns the CFG key for a type, e.g. icinga:config:host.
func Config(typeTag string) string {
	return configPrefix + typeTag
}

// ConfigSub returns the CFG key for a per-type sub-relation, e.g.
// icinga:config:host:groupmember.
func ConfigSub(typeTag, subRelation string) string {
	return configPrefix + typeTag + ":" + subRelation
}

// SharedTable returns the CFG key for a shared (typeless) table.
func SharedTable(table string) string {
	return configPrefix + table
}

// Checksum returns the CHKSM key for a type.
func Checksum(typeTag string) string {
	return checksumPrefix + typeTag
}

// ChecksumSub returns the CHKSM key for a per-type sub-relation.
func ChecksumSub(typeTag, subRelation string) string {
	return checksumPrefix + typeTag + ":" + subRelation
}

// State returns the STATE key holding the latest state hash for a type.
func State(typeTag string) string {
	return statePrefix + typeTag
}

// StateStream returns the append-only state stream key for "host" or
// "service".
func StateStream(checkableKind string) string {
	return streamPrefix + checkableKind
}

// subRelations lists the per-type sub-relation suffixes that own both a CFG
// and a CHKSM key, keyed by type tag. Types not present here carry only the
// bare CFG/CHKSM pair.
var subRelations = map[string][]string{
	"host":                {"customvar", "groupmember"},
	"service":             {"customvar", "groupmember"},
	"user":                {"customvar", "groupmember"},
	"hostgroup":           {"customvar"},
	"servicegroup":        {"customvar"},
	"usergroup":           {"customvar"},
	"checkcommand":        {"customvar", "argument", "envvar"},
	"eventcommand":        {"customvar", "argument", "envvar"},
	"notificationcommand": {"customvar", "argument", "envvar"},
	"timeperiod":          {"range", "overwrite:include", "overwrite:exclude"},
	"zone":                {"parent"},
	"notification":        {"user", "usergroup"},
}

// TypeKeys returns every CFG and CHKSM key owned by typeTag: the bare pair
// plus one pair per sub-relation. Used by the full dump to know which keys
// to delete before rebuilding a type.
func TypeKeys(typeTag string) []string {
	keys := []string{Config(typeTag), Checksum(typeTag)}
	for _, sub := range subRelations[typeTag] {
		keys = append(keys, ConfigSub(typeTag, sub), ChecksumSub(typeTag, sub))
	}
	return keys
}

// downtimeComment holds the type tags the original "downtime" and "comment"
// config types split into, one per checkable kind.
var downtimeComment = map[string][]string{
	"downtime": {"hostdowntime", "servicedowntime"},
	"comment":  {"hostcomment", "servicecomment"},
}

// TypeTag normalizes a source engine type name into the lowercase tag used
// throughout the keyspace. "downtime" and "comment" are not valid tags on
// their own; callers iterating all logical types should use LogicalTypes
// instead and match ObjectTypeTag per object.
func TypeTag(typeName string) string {
	return strings.ToLower(typeName)
}

// LogicalTypes expands the fixed set of source type names into every
// logical type tag the dump and key schema operate over, splitting
// downtime/comment per checkable kind.
func LogicalTypes(typeNames []string) []string {
	tags := make([]string, 0, len(typeNames)+2)
	for _, name := range typeNames {
		lc := strings.ToLower(name)
		if split, ok := downtimeComment[lc]; ok {
			tags = append(tags, split...)
			continue
		}
		tags = append(tags, lc)
	}
	return tags
}

// ObjectTypeTag returns the logical type tag for a single object, given its
// reflected type name and, for downtimes/comments, whether it belongs to a
// service (vs. a host).
func ObjectTypeTag(typeName string, isServiceScoped bool) string {
	lc := strings.ToLower(typeName)
	if split, ok := downtimeComment[lc]; ok {
		if isServiceScoped {
			return split[1]
		}
		return split[0]
	}
	return lc
}
