package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// Store SQL 数据库存储实现（支持 PostgreSQL、MySQL 5.7+ 和 SQLite）
type Store struct {
	db         *gorm.DB
	sqlDB      *sql.DB
	driverName string // "postgres"、"mysql" 或 "sqlite"
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建SQL数据库存储并自动迁移表结构
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	store := &Store{
		db:         db,
		sqlDB:      sqlDB,
		driverName: cfg.Type,
	}

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Open 按配置打开数据库连接并返回 GORM 实例
//
// PostgreSQL 与 MySQL 先通过 database/sql 建立连接池，再交给 GORM 复用；
// SQLite 直接使用 GORM 驱动。
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "postgres":
		var conn *sql.DB
		conn, err = openPool("postgres", cfg.DSN, cfg)
		if err != nil {
			return nil, err
		}
		db, err = gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig)
	case "mysql":
		dsn, dsnErr := normalizeMySQLDSN(cfg.DSN)
		if dsnErr != nil {
			return nil, dsnErr
		}
		var conn *sql.DB
		conn, err = openPool("mysql", dsn, cfg)
		if err != nil {
			return nil, err
		}
		db, err = gorm.Open(mysql.New(mysql.Config{Conn: conn}), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.New(sqlite.Config{DriverName: sqliteDriverName, DSN: cfg.DSN}), gormConfig)
		if err == nil {
			err = configureSQLite(db)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}
	return db, nil
}

func openPool(driverName, dsn string, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// normalizeMySQLDSN 强制 parseTime 与 UTC 时区，保证时间字段按 UTC 往返
func normalizeMySQLDSN(dsn string) (string, error) {
	parsed, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

// sqliteDriverName 注册了 unicode_lower 函数的 SQLite 驱动
const sqliteDriverName = "sqlite3_tempmail"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
}

// configureSQLite SQLite 只允许单连接写入，同时打开外键约束
func configureSQLite(db *gorm.DB) error {
	conn, err := db.DB()
	if err != nil {
		return err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	return db.Exec("PRAGMA foreign_keys = ON").Error
}

// Migrate 执行数据库迁移（使用GORM AutoMigrate）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Address{},
		&domain.Email{},
		&domain.Recipient{},
		&domain.Attachment{},
	)
}

// Drop 按依赖逆序删除全部表
func Drop(db *gorm.DB) error {
	return db.Migrator().DropTable(
		&domain.Attachment{},
		&domain.Recipient{},
		&domain.Email{},
		&domain.Address{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.sqlDB != nil {
		return s.sqlDB.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.sqlDB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.sqlDB.Ping()
}

// translateError 将驱动与 GORM 错误转换为存储层错误
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", storage.ErrDuplicateAddress, err)
	default:
		return err
	}
}

// isUniqueViolation 识别各数据库的唯一约束冲突
//
// 通过 database/sql 连接池接入的 PostgreSQL 使用 lib/pq，
// GORM 的 postgres 方言只能翻译 pgx 错误，因此这里同时检查驱动错误码。
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var mysqlErr *mysqldrv.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '!' 使用
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
