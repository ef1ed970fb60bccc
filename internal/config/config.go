package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Remote RemoteConfig
	Keys   APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	NoticeLogFilePath  string
	CorsAllowedOrigins string
	SurfaceTTLMinutes  int
}

// RemoteConfig locates the external collaborators: the conversation store
// and the agent answer endpoint. They usually share one origin.
type RemoteConfig struct {
	MemoryAPIBaseURL string
	AgentAPIBaseURL  string
}

type APIKeys struct {
	JWTSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	memoryBase := getEnv("MEMORY_API_BASE_URL", "http://localhost:8000/api")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			NoticeLogFilePath:  getEnv("NOTICE_LOG_FILE_PATH", "logs/notice.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			SurfaceTTLMinutes:  getEnvAsInt("SURFACE_TTL_MINUTES", 60),
		},
		Remote: RemoteConfig{
			MemoryAPIBaseURL: memoryBase,
			AgentAPIBaseURL:  getEnv("AGENT_API_BASE_URL", memoryBase),
		},
		Keys: APIKeys{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
