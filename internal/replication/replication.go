// Package replication orchestrates full configuration dumps, incremental
// runtime updates, and state-stream appends against Redis: it is the
// subsystem that turns a prepared object and its dependency expansion into
// the transactional command batches the rest of the bridge relies on.
package replication

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"icingadb.dev/redisbridge/internal/depend"
	"icingadb.dev/redisbridge/internal/ident"
	"icingadb.dev/redisbridge/internal/keyspace"
	"icingadb.dev/redisbridge/internal/objects"
	"icingadb.dev/redisbridge/internal/redisclient"
	"icingadb.dev/redisbridge/internal/serialize"
	"icingadb.dev/redisbridge/internal/source"
	"icingadb.dev/redisbridge/internal/workqueue"
)

// ErrDumpInProgress is returned by FullDump when a previous dump on the
// same engine has not yet finished.
var ErrDumpInProgress = errors.New("replication: full dump already in progress")

// Engine is one replicator instance: a Redis connection, a source registry,
// and the concurrency knobs governing its work queues.
type Engine struct {
	client   *redisclient.Client
	registry source.Registry
	envID    string

	concurrency int
	chunkSize   int
	flushEvery  int

	log *logrus.Entry

	dumping atomic.Bool
}

// Options configures a new Engine.
type Options struct {
	Environment string
	Concurrency int
	ChunkSize   int
	FlushEvery  int
}

// New builds a replication engine bound to client and registry.
func New(client *redisclient.Client, registry source.Registry, opts Options, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		client:      client,
		registry:    registry,
		envID:       ident.EnvID(opts.Environment),
		concurrency: opts.Concurrency,
		chunkSize:   opts.ChunkSize,
		flushEvery:  opts.FlushEvery,
		log:         log.WithField("component", "replication"),
	}
}

// FullDump rebuilds the entire Redis keyspace from the source registry,
// per §4.5.1: shared tables are cleared first, then every logical type is
// dumped with outer (per-type) and inner (per-chunk) parallelism.
func (e *Engine) FullDump(ctx context.Context) error {
	if !e.dumping.CompareAndSwap(false, true) {
		return ErrDumpInProgress
	}
	defer e.dumping.Store(false)

	start := time.Now()
	dumpID := uuid.NewString()
	log := e.log.WithField("dump_id", dumpID)

	if !e.client.IsConnected(ctx) {
		return errors.New("replication: redis not connected, full dump aborted")
	}

	sharedKeys := make([]string, 0, len(keyspace.SharedTables))
	for _, table := range keyspace.SharedTables {
		sharedKeys = append(sharedKeys, keyspace.SharedTable(table))
	}
	if err := e.client.Del(ctx, sharedKeys...); err != nil {
		return err
	}

	typeNames := make([]string, 0, len(e.registry.Types()))
	for _, t := range e.registry.Types() {
		typeNames = append(typeNames, string(t))
	}
	tags := keyspace.LogicalTypes(typeNames)

	outer := workqueue.New(ctx, "full-dump-outer", len(tags)+1, e.concurrency, log)
	for _, tag := range tags {
		tag := tag
		outer.Submit(func(ctx context.Context) error {
			return e.dumpType(ctx, tag)
		})
	}

	if err := outer.Join(); err != nil {
		for _, dumpErr := range outer.Exceptions() {
			log.WithError(dumpErr).Error("full dump: type worker failed")
		}
	}

	log.WithField("duration", time.Since(start)).Info("full dump complete")
	return nil
}

func (e *Engine) dumpType(ctx context.Context, tag string) error {
	if err := e.client.Del(ctx, keyspace.TypeKeys(tag)...); err != nil {
		return err
	}

	objs := e.objectsForTag(tag)
	chunks := chunkObjects(objs, e.chunkSize)

	inner := workqueue.New(ctx, "full-dump-inner-"+tag, len(chunks)+1, e.concurrency, e.log)
	for _, chunk := range chunks {
		chunk := chunk
		inner.Submit(func(ctx context.Context) error {
			return e.dumpChunk(ctx, tag, chunk)
		})
	}

	if err := inner.Join(); err != nil {
		return err
	}

	return e.client.Publish(ctx, keyspace.ChannelDump, tag)
}

func (e *Engine) dumpChunk(ctx context.Context, tag string, chunk []objects.Object) error {
	batch := newTxBatch()
	states := make(map[string]string)
	isCheckableType := tag == string(objects.TypeHost) || tag == string(objects.TypeService)

	flush := func() error {
		if batch.empty() && len(states) == 0 {
			return nil
		}
		if err := e.flush(ctx, tag, batch, states); err != nil {
			return err
		}
		batch = newTxBatch()
		states = make(map[string]string)
		return nil
	}

	count := 0
	for _, obj := range chunk {
		if objectTag(obj) != tag {
			continue
		}

		if _, err := e.createConfigUpdate(obj, tag, batch); err != nil {
			e.log.WithError(err).WithField("object", obj.FullName()).Error("dependency expansion failed")
		}

		if checkable, ok := obj.(objects.Checkable); ok && isCheckableType {
			stateJSON, err := json.Marshal(serialize.SerializeState(e.envID, checkable, e.registry))
			if err == nil {
				states[ident.ObjectID(obj.FullName())] = string(stateJSON)
			}
		}

		count++
		if count%e.flushEvery == 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func (e *Engine) flush(ctx context.Context, tag string, batch *txBatch, states map[string]string) error {
	return e.client.Tx(ctx, func(pipe redis.Pipeliner) {
		batch.apply(ctx, pipe)
		if len(states) == 0 {
			return
		}
		args := make([]interface{}, 0, len(states)*2)
		for id, value := range states {
			args = append(args, id, value)
		}
		pipe.HSet(ctx, keyspace.State(tag), args...)
	})
}

// RuntimeUpdate applies a single object's config update transactionally and
// announces it, per §4.5.2.
func (e *Engine) RuntimeUpdate(ctx context.Context, obj objects.Object) error {
	if !e.client.IsConnected(ctx) {
		return nil
	}

	tag := objectTag(obj)
	batch := newTxBatch()

	relevant, err := e.createConfigUpdate(obj, tag, batch)
	if err != nil {
		e.log.WithError(err).WithField("object", obj.FullName()).Error("dependency expansion failed")
	}
	if !relevant {
		return nil
	}

	objID := ident.ObjectID(obj.FullName())

	if checkable, ok := obj.(objects.Checkable); ok {
		stateJSON, err := json.Marshal(serialize.SerializeState(e.envID, checkable, e.registry))
		if err != nil {
			return err
		}
		if err := e.client.HSet(ctx, keyspace.State(tag), objID, string(stateJSON)); err != nil {
			e.log.WithError(err).Error("best-effort state write failed")
		}
	}

	if err := e.client.Tx(ctx, func(pipe redis.Pipeliner) { batch.apply(ctx, pipe) }); err != nil {
		return err
	}

	return e.client.Publish(ctx, keyspace.ChannelUpdate, tag+":"+objID)
}

// RuntimeDelete removes an object deactivated with the ConfigObjectDeleted
// marker, per §4.5.3. No checksum cleanup is performed; consumers must
// tolerate stale checksum rows.
func (e *Engine) RuntimeDelete(ctx context.Context, obj objects.Object) error {
	if !e.client.IsConnected(ctx) {
		return nil
	}

	tag := objectTag(obj)
	objID := ident.ObjectID(obj.FullName())

	if err := e.client.HDel(ctx, keyspace.Config(tag), objID); err != nil {
		return err
	}
	if err := e.client.HDel(ctx, keyspace.State(tag), objID); err != nil {
		return err
	}

	return e.client.Publish(ctx, keyspace.ChannelDelete, tag+":"+objID)
}

// StateStreamUpdate appends the checkable's current status to its
// type-scoped stream, per §4.5.4.
func (e *Engine) StateStreamUpdate(ctx context.Context, checkable objects.Checkable) error {
	if !e.client.IsConnected(ctx) {
		return nil
	}

	kind := "host"
	if _, isService := checkable.(*objects.Service); isService {
		kind = "service"
	}

	attrs := serialize.SerializeState(e.envID, checkable, e.registry)
	return e.client.XAdd(ctx, keyspace.StateStream(kind), map[string]interface{}(attrs))
}

// createConfigUpdate implements §4.5.5: prepare the object's attributes,
// expand its dependencies into batch, and append its own attribute and
// checksum rows. It returns relevant=false for object types the serializer
// does not recognize.
func (e *Engine) createConfigUpdate(obj objects.Object, tag string, batch *txBatch) (relevant bool, err error) {
	attrs, checksums, relevant := serialize.Prepare(e.envID, obj)
	if !relevant {
		return false, nil
	}

	exp := depend.Expand(e.envID, obj)
	objID := ident.ObjectID(obj.FullName())
	applyExpansion(batch, tag, objID, exp)

	batch.setJSON(keyspace.Config(tag), objID, attrs)
	batch.setJSON(keyspace.Checksum(tag), objID, checksums)

	return true, nil
}

// applyExpansion writes every row produced by depend.Expand into batch at
// the keys owned by tag.
func applyExpansion(batch *txBatch, tag, objID string, exp depend.Expansion) {
	if exp.CustomVar != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "customvar"), objID, exp.CustomVar.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "customvar"), objID, exp.CustomVar.Checksum)
	}
	for name, value := range exp.SharedCustomVars {
		batch.setJSON(keyspace.SharedTable(keyspace.TableCustomVar), name, value)
	}

	if exp.GroupMembers != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "groupmember"), objID, exp.GroupMembers.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "groupmember"), objID, exp.GroupMembers.Checksum)
	}

	if exp.ActionURL != nil {
		batch.setJSON(keyspace.SharedTable(keyspace.TableActionURL), exp.ActionURL.ID, exp.ActionURL.Attrs)
	}
	if exp.NotesURL != nil {
		batch.setJSON(keyspace.SharedTable(keyspace.TableNotesURL), exp.NotesURL.ID, exp.NotesURL.Attrs)
	}
	if exp.IconImage != nil {
		batch.setJSON(keyspace.SharedTable(keyspace.TableIconImage), exp.IconImage.ID, exp.IconImage.Attrs)
	}

	if exp.Ranges != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "range"), objID, exp.Ranges.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "range"), objID, exp.Ranges.Checksum)
	}
	for id, attrs := range exp.TimeRange {
		batch.setJSON(keyspace.SharedTable(keyspace.TableTimeRange), id, attrs)
	}
	if exp.Includes != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "overwrite:include"), objID, exp.Includes.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "overwrite:include"), objID, exp.Includes.Checksum)
	}
	if exp.Excludes != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "overwrite:exclude"), objID, exp.Excludes.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "overwrite:exclude"), objID, exp.Excludes.Checksum)
	}

	if exp.Parents != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "parent"), objID, exp.Parents.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "parent"), objID, exp.Parents.Checksum)
	}

	if exp.NotificationUsers != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "user"), objID, exp.NotificationUsers.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "user"), objID, exp.NotificationUsers.Checksum)
	}
	if exp.NotificationUserGroups != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "usergroup"), objID, exp.NotificationUserGroups.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "usergroup"), objID, exp.NotificationUserGroups.Checksum)
	}

	if exp.Arguments != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "argument"), objID, exp.Arguments.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "argument"), objID, exp.Arguments.Checksum)
	}
	for id, value := range exp.CommandArgument {
		batch.setJSON(keyspace.SharedTable(keyspace.TableCommandArgument), id, value)
	}
	if exp.EnvVars != nil {
		batch.setJSON(keyspace.ConfigSub(tag, "envvar"), objID, exp.EnvVars.Attrs)
		batch.setJSON(keyspace.ChecksumSub(tag, "envvar"), objID, exp.EnvVars.Checksum)
	}
	for id, value := range exp.CommandEnvVar {
		batch.setJSON(keyspace.SharedTable(keyspace.TableCommandEnvVar), id, value)
	}
}

// objectTag resolves the logical key-schema type tag for a live object,
// applying the downtime/comment host/service split.
func objectTag(obj objects.Object) string {
	scoped := false
	switch o := obj.(type) {
	case *objects.Downtime:
		scoped = o.ServiceScoped
	case *objects.Comment:
		scoped = o.ServiceScoped
	case *objects.Service:
		scoped = true
	}
	return keyspace.ObjectTypeTag(string(obj.ObjectType()), scoped)
}

// objectsForTag returns every object from the registry that belongs to the
// logical type tag, resolving the downtime/comment split back to the
// underlying source type.
func (e *Engine) objectsForTag(tag string) []objects.Object {
	var sourceType objects.Type
	switch tag {
	case "hostdowntime", "servicedowntime":
		sourceType = objects.TypeDowntime
	case "hostcomment", "servicecomment":
		sourceType = objects.TypeComment
	default:
		sourceType = objects.Type(tag)
	}
	return e.registry.ObjectsOf(sourceType)
}

// chunkObjects partitions objs into slices of at most size elements each.
func chunkObjects(objs []objects.Object, size int) [][]objects.Object {
	if size <= 0 {
		size = len(objs)
		if size == 0 {
			size = 1
		}
	}
	var chunks [][]objects.Object
	for i := 0; i < len(objs); i += size {
		end := i + size
		if end > len(objs) {
			end = len(objs)
		}
		chunks = append(chunks, objs[i:end])
	}
	return chunks
}
