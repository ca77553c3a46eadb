package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxelview/protocol"
)

// Store 按房间持久化体素编辑，重启后在新生成的地形上回放
// 写入由单个写协程完成；nil *Store 不做任何事
type Store struct {
	log *zap.SugaredLogger
	db  *sql.DB

	ch   chan edit
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

type edit struct {
	room string
	u    protocol.VoxelUpdate
}

func OpenStore(log *zap.SugaredLogger, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS edits (
			room TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			voxel INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			PRIMARY KEY (room, x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_room_seq ON edits(room, seq);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}

	s := &Store{log: log, db: db, ch: make(chan edit, 65536)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// Save 将编辑放入队列，不会阻塞房间 Tick，队列满时丢弃
// Save 不能与 Close 并发
func (s *Store) Save(room string, u protocol.VoxelUpdate) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- edit{room: room, u: u}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped 因队列满而丢弃的编辑数
func (s *Store) Dropped() int64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Edits 返回房间内每个被编辑格子的最新值，按时间先后排序
func (s *Store) Edits(ctx context.Context, room string) ([]protocol.VoxelUpdate, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, z, voxel FROM edits WHERE room = ? ORDER BY seq`, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.VoxelUpdate
	for rows.Next() {
		var u protocol.VoxelUpdate
		var v int64
		if err := rows.Scan(&u.X, &u.Y, &u.Z, &v); err != nil {
			return nil, err
		}
		u.Voxel = protocol.Voxel(uint32(v))
		out = append(out, u)
	}
	return out, rows.Err()
}

// Close 写完队列中的编辑并关闭数据库
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) loop() {
	var seq int64
	_ = s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM edits`).Scan(&seq)
	const upsert = `INSERT INTO edits (room, x, y, z, voxel, seq) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(room, x, y, z) DO UPDATE SET voxel = excluded.voxel, seq = excluded.seq`

	for e := range s.ch {
		// 已排队的编辑合并到一个事务
		batch := []edit{e}
	fill:
		for len(batch) < 1024 {
			select {
			case next, ok := <-s.ch:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}

		tx, err := s.db.Begin()
		if err != nil {
			s.log.Errorw("store begin", "err", err)
			continue
		}
		for _, b := range batch {
			seq++
			if _, err := tx.Exec(upsert, b.room, b.u.X, b.u.Y, b.u.Z, int64(b.u.Voxel), seq); err != nil {
				s.log.Errorw("store edit", "room", b.room, "err", err)
			}
		}
		if err := tx.Commit(); err != nil {
			s.log.Errorw("store commit", "n", len(batch), "err", err)
		}
	}
}
