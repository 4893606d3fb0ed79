// Package redis stores each stream partition as one Redis hash. Atomic writes
// run as a Lua script, which Redis executes without interleaving other commands.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	es "github.com/terraskye/streamstore"
)

var (
	_ es.Backend          = (*Backend)(nil)
	_ es.PartitionScanner = (*Backend)(nil)
)

// writeScript checks the condition of every operation before applying any.
// It returns 0 on success or the 1-based index of the first failed operation.
var writeScript = redis.NewScript(`
local hash = KEYS[1]
local index = KEYS[2]
local ops = cjson.decode(ARGV[2])

for i, op in ipairs(ops) do
	local current = redis.call('HGET', hash, op.key)
	if op.op == 'insert' then
		if current then
			return i
		end
	else
		if not current then
			return i
		end
		if op.etag ~= '*' and cjson.decode(current).e ~= op.etag then
			return i
		end
	end
end

for _, op in ipairs(ops) do
	if op.op == 'delete' then
		redis.call('HDEL', hash, op.key)
	else
		redis.call('HSET', hash, op.key, op.value)
	end
end

redis.call('SADD', index, ARGV[1])
return 0
`)

// storedRow is the hash field value of a row.
type storedRow struct {
	Kind    string `json:"k"`
	Version uint64 `json:"v"`
	ETag    string `json:"e"`
	Data    []byte `json:"d,omitempty"`
}

type scriptOp struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	ETag  string `json:"etag"`
	Value string `json:"value,omitempty"`
}

// Backend implements es.Backend on a Redis client.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// defaultHashTag is used when the prefix is empty, since "{}" does not select a slot.
const defaultHashTag = "streamstore"

// New creates a Backend. Every key it writes starts with "{prefix}". The braces
// form a cluster hash tag, so the partition hashes and the partition index share
// one slot and the write script runs on a cluster client.
func New(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = defaultHashTag
	}
	return &Backend{client: client, prefix: "{" + prefix + "}"}
}

// Open connects to the Redis server at addr.
func Open(ctx context.Context, addr, prefix string) (*Backend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, prefix), nil
}

// Close closes the client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) hashKey(partition string) string {
	return b.prefix + "partition:" + partition
}

func (b *Backend) indexKey() string {
	return b.prefix + "partitions"
}

// TryOpenPartition implements es.Backend.
func (b *Backend) TryOpenPartition(ctx context.Context, key string) (es.Partition, error) {
	raw, err := b.client.HGet(ctx, b.hashKey(key), es.HeadRowKey).Result()
	if err == redis.Nil {
		return es.Partition{Key: key}, nil
	}
	if err != nil {
		return es.Partition{}, es.WrapBackendError("open partition", err)
	}
	var head storedRow
	if err := json.Unmarshal([]byte(raw), &head); err != nil {
		return es.Partition{}, es.WrapBackendError("open partition", err)
	}
	return es.Partition{Key: key, Exists: true, Version: head.Version, ETag: head.ETag}, nil
}

// WriteAtomic implements es.Backend.
func (b *Backend) WriteAtomic(ctx context.Context, key string, ops []es.RowOperation) error {
	payload := make([]scriptOp, 0, len(ops))
	for _, op := range ops {
		so := scriptOp{Op: op.Op.String(), Key: op.Row.RowKey, ETag: op.Row.ETag}
		if op.Op != es.OpDelete {
			value, err := json.Marshal(storedRow{
				Kind:    op.Row.Kind,
				Version: op.Row.Version,
				ETag:    uuid.NewString(),
				Data:    op.Row.Data,
			})
			if err != nil {
				return fmt.Errorf("encode row %q: %w", op.Row.RowKey, err)
			}
			so.Value = string(value)
		}
		payload = append(payload, so)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	failed, err := writeScript.Run(ctx, b.client, []string{b.hashKey(key), b.indexKey()}, key, string(encoded)).Int()
	if err != nil {
		return es.WrapBackendError("write", err)
	}
	if failed != 0 {
		op := ops[failed-1]
		return fmt.Errorf("write partition %q: op %d: %s %q: %w", key, failed-1, op.Op, op.Row.RowKey, es.ErrConditionFailed)
	}
	return nil
}

// QueryByPartitionAndKeyPrefix implements es.Backend.
func (b *Backend) QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]es.Row, error) {
	fields, err := b.client.HGetAll(ctx, b.hashKey(key)).Result()
	if err != nil {
		return nil, es.WrapBackendError("query", err)
	}
	rows, err := decodeRows(key, fields, prefix)
	if err != nil {
		return nil, es.WrapBackendError("query", err)
	}
	return rows, nil
}

// QueryByKeyPrefix implements es.PartitionScanner. It reads every partition
// registered by a write, so it is meant for small read models.
func (b *Backend) QueryByKeyPrefix(ctx context.Context, prefix string) ([]es.Row, error) {
	partitions, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, es.WrapBackendError("scan", err)
	}
	sort.Strings(partitions)

	pipe := b.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(partitions))
	for i, p := range partitions {
		cmds[i] = pipe.HGetAll(ctx, b.hashKey(p))
	}
	if len(partitions) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, es.WrapBackendError("scan", err)
		}
	}

	var out []es.Row
	for i, p := range partitions {
		rows, err := decodeRows(p, cmds[i].Val(), prefix)
		if err != nil {
			return nil, es.WrapBackendError("scan", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func decodeRows(partition string, fields map[string]string, prefix string) ([]es.Row, error) {
	out := make([]es.Row, 0, len(fields))
	for rowKey, raw := range fields {
		if !strings.HasPrefix(rowKey, prefix) {
			continue
		}
		var stored storedRow
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("decode row %s/%s: %w", partition, rowKey, err)
		}
		out = append(out, es.Row{
			PartitionKey: partition,
			RowKey:       rowKey,
			Kind:         stored.Kind,
			Version:      stored.Version,
			ETag:         stored.ETag,
			Data:         stored.Data,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowKey < out[j].RowKey })
	return out, nil
}
