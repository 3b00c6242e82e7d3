package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	LogLevel    string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration
	KafkaBatchTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
	CassandraRF       int
	MigrationsPath    string

	// Blob storage
	BlobBackend    string
	BlobLocalPath  string
	BlobPublicURL  string
	S3Region       string
	S3Bucket       string
	MaxUploadBytes int64

	// HTTP guards
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int

	// Worker
	WorkerCount     int
	WorkerQueueSize int
	FanoutLimit     int
}

var cfg *Config

// Init loads .env files, then the config using Viper, and returns it
func Init() *Config {
	// .env.local overrides .env; real environment variables win over both
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("JWT_TTL", "24h")

	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "activity-topic")
	viper.SetDefault("KAFKA_GROUP_ID", "notification-workers")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_BATCH_TIMEOUT", "5ms")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "socialfeed")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	viper.SetDefault("CASSANDRA_REPLICATION", 1)
	viper.SetDefault("MIGRATIONS_PATH", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC can be empty

	viper.SetDefault("BLOB_BACKEND", "local")
	viper.SetDefault("BLOB_LOCAL_PATH", "./uploads")
	viper.SetDefault("BLOB_PUBLIC_URL", "/uploads")
	viper.SetDefault("MAX_UPLOAD_BYTES", 5<<20)

	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	viper.SetDefault("WORKER_COUNT", 0)
	viper.SetDefault("WORKER_QUEUE_SIZE", 0)
	viper.SetDefault("FANOUT_LIMIT", 20)

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		TLSCertFile:       viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        viper.GetString("TLS_KEY_FILE"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		JWTTTL:            parseDuration(viper.GetString("JWT_TTL"), 24*time.Hour),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		KafkaBatchTO:      parseDuration(viper.GetString("KAFKA_BATCH_TIMEOUT"), 5*time.Millisecond),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
		CassandraRF:       viper.GetInt("CASSANDRA_REPLICATION"),
		MigrationsPath:    viper.GetString("MIGRATIONS_PATH"),
		BlobBackend:       viper.GetString("BLOB_BACKEND"),
		BlobLocalPath:     viper.GetString("BLOB_LOCAL_PATH"),
		BlobPublicURL:     viper.GetString("BLOB_PUBLIC_URL"),
		S3Region:          viper.GetString("S3_REGION"),
		S3Bucket:          viper.GetString("S3_BUCKET"),
		MaxUploadBytes:    viper.GetInt64("MAX_UPLOAD_BYTES"),
		CORSOrigins:       splitList(viper.GetString("CORS_ORIGINS")),
		RateLimitRPS:      viper.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:    viper.GetInt("RATE_LIMIT_BURST"),
		WorkerCount:       viper.GetInt("WORKER_COUNT"),
		WorkerQueueSize:   viper.GetInt("WORKER_QUEUE_SIZE"),
		FanoutLimit:       viper.GetInt("FANOUT_LIMIT"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
