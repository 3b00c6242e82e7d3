package store

import (
	"context"
	"errors"
	"fmt"

	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var logg = logger.New()

// hydrateLimit bounds concurrent per-post reads (row, likes, comments).
const hydrateLimit = 16

// --- Interfaces ---

type SessionInterface interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	NewBatch(batchType gocql.BatchType) *gocql.Batch
	ExecuteBatch(batch *gocql.Batch) error
	Close()
}

// AccountStore persists accounts and the follow edge set.
type AccountStore interface {
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	GetAccounts(ctx context.Context, ids []string) (map[string]models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.Account, error)

	// AddFollow inserts the edge follower->target. It reports false when the
	// edge already existed.
	AddFollow(ctx context.Context, followerID, targetID string) (bool, error)
	// RemoveFollow deletes the edge follower->target. It reports false when
	// there was no such edge.
	RemoveFollow(ctx context.Context, followerID, targetID string) (bool, error)
	GetFollowing(ctx context.Context, id string) ([]string, error)
	GetFollowers(ctx context.Context, id string) ([]string, error)
}

// PostStore persists posts with their likes and comments. Every list is
// returned newest first.
type PostStore interface {
	CreatePost(ctx context.Context, p models.Post) error
	GetPost(ctx context.Context, id string) (models.Post, error)
	// GetPostRow returns the post without likes and comments.
	GetPostRow(ctx context.Context, id string) (models.Post, error)
	ListAllPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error)
	UpdatePostText(ctx context.Context, id, text string) error
	// DeletePost removes the post together with all of its likes and comments.
	DeletePost(ctx context.Context, p models.Post) error

	AddLike(ctx context.Context, postID, accountID string) (bool, error)
	RemoveLike(ctx context.Context, postID, accountID string) (bool, error)
	GetLikes(ctx context.Context, postID string) ([]string, error)

	AddComment(ctx context.Context, c models.Comment) error
	GetComment(ctx context.Context, postID, commentID string) (models.Comment, error)
	// DeleteComment removes c only while it is still owned by c.AuthorID.
	DeleteComment(ctx context.Context, c models.Comment) (bool, error)
	GetComments(ctx context.Context, postID string) ([]models.Comment, error)
}

type NotificationStore interface {
	AddNotification(ctx context.Context, n models.Notification) error
	GetNotifications(ctx context.Context, accountID string, limit int) ([]models.Notification, error)
}

type StoreInterface interface {
	AccountStore
	PostStore
	NotificationStore
	Close()
}

type Store struct {
	Session SessionInterface
}

// New prepares the keyspace and schema, then opens the application session.
func New() (StoreInterface, error) {
	cfg := config.Get()

	if err := ensureKeyspace(cfg); err != nil {
		return nil, fmt.Errorf("ensure keyspace: %w", err)
	}
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cluster := newCluster(cfg)
	cluster.Keyspace = cfg.CassandraKeyspace
	// LWTs (follow edges, likes, email ownership) need SERIAL reads to be linearizable
	cluster.SerialConsistency = gocql.Serial

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	logg.Info("store", "Cassandra session ready")
	return &Store{Session: sess}, nil
}

func newCluster(cfg *config.Config) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.CassandraTimeout
	cluster.ConnectTimeout = cfg.CassandraTimeout

	if cfg.CassandraUsername != "" && cfg.CassandraPassword != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.CassandraUsername,
			Password: cfg.CassandraPassword,
		}
	}

	if cfg.CassandraDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.DCAwareRoundRobinPolicy(cfg.CassandraDC)
		cluster.HostFilter = gocql.DataCentreHostFilter(cfg.CassandraDC)
	}
	return cluster
}

// ensureKeyspace creates the keyspace through the system keyspace, since the
// migration driver needs it to exist.
func ensureKeyspace(cfg *config.Config) error {
	cluster := newCluster(cfg)
	cluster.Keyspace = "system"
	sess, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("connect to system keyspace: %w", err)
	}
	defer sess.Close()

	rf := max(cfg.CassandraRF, 1)
	var replication string
	if cfg.CassandraDC != "" {
		replication = fmt.Sprintf(`{'class': 'NetworkTopologyStrategy', '%s': %d}`, cfg.CassandraDC, rf)
	} else {
		replication = fmt.Sprintf(`{'class': 'SimpleStrategy', 'replication_factor': %d}`, rf)
	}
	query := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s`, cfg.CassandraKeyspace, replication)
	if err := sess.Query(query).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New(
		"file://"+cfg.MigrationsPath,
		fmt.Sprintf("cassandra://%s/%s?x-migrations-table=schema_migrations&x-multi-statement=true",
			cfg.CassandraHost, cfg.CassandraKeyspace),
	)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	logg.Info("store", fmt.Sprintf("Schema at version %d", version))
	return nil
}

func (s *Store) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}
