package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/audit"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/auth"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/cache"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/config"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/database"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/fines"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/imports"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/loans"
	"github.com/sbshrey/Neighborhood-Library-Service/pkg/policy"
)

var (
	cfg       config.Config
	db        *gorm.DB
	tokens    *auth.Tokens
	limiter   *auth.LoginRateLimiter
	policies  *policy.Store
	ledger    *fines.Ledger
	manager   *loans.Manager
	recorder  *audit.Recorder
	responses *cache.Coordinator
	importer  *imports.Importer
)

// wire builds every component on top of the given database. Split out of
// main so tests can assemble the same stack on sqlite.
func wire(conn *gorm.DB, c config.Config) {
	cfg = c
	db = conn
	tokens = auth.NewTokens(c.JWTSecret, c.JWTExpiryMinutes)
	limiter = auth.NewLoginRateLimiter(
		c.LoginRateLimitPerWindow,
		time.Duration(c.LoginRateLimitWindowSecond)*time.Second)
	policies = policy.NewStore(conn)
	ledger = fines.NewLedger(conn)
	manager = loans.NewManager(conn, policies, ledger)
	recorder = audit.NewRecorder(conn, c.AuditLogEnabled)
	responses = cache.New(c.CacheEnabled, c.CacheNamespace, c.CacheTTLSeconds, c.CacheRedisURL)
	importer = imports.NewImporter(conn, manager, policies, c.DefaultUserPassword)
}

func newRouter() *gin.Engine {
	r := gin.Default()
	r.Use(auth.ActorContext(tokens))
	r.Use(recorder.Middleware())
	r.Use(responses.InvalidateOnMutation())

	r.POST("/auth/login", limiter.Middleware(), login)
	r.GET("/auth/me", auth.RequireAuth(), me)

	r.GET("/books", auth.RequireAuth(), listBooks)
	r.GET("/books/:id", auth.RequireRoles("staff", "admin"), getBook)
	r.POST("/books", auth.RequireRoles("admin"), createBook)
	r.PATCH("/books/:id", auth.RequireRoles("admin"), updateBook)
	r.DELETE("/books/:id", auth.RequireRoles("admin"), deleteBook)

	r.GET("/users", auth.RequireRoles("staff", "admin"), listUsers)
	r.GET("/users/:id", auth.RequireRoles("staff", "admin"), getUser)
	r.POST("/users", createUser)
	r.PATCH("/users/:id", auth.RequireRoles("admin"), updateUser)
	r.DELETE("/users/:id", auth.RequireRoles("admin"), deleteUser)
	r.GET("/users/:id/loans", auth.RequireAuth(), listUserLoans)

	r.POST("/loans/borrow", auth.RequireRoles("staff", "admin"), borrowBook)
	r.POST("/loans/:id/return", auth.RequireRoles("staff", "admin"), returnBook)
	r.GET("/loans", auth.RequireRoles("staff", "admin"), listLoans)
	r.PATCH("/loans/:id", auth.RequireRoles("admin"), extendLoan)
	r.DELETE("/loans/:id", auth.RequireRoles("admin"), deleteLoan)
	r.GET("/loans/:id/fine-summary", auth.RequireRoles("staff", "admin"), getLoanFineSummary)
	r.GET("/loans/:id/fine-payments", auth.RequireRoles("staff", "admin"), listLoanFinePayments)
	r.POST("/loans/:id/fine-payments", auth.RequireRoles("staff", "admin"), collectFinePayment)

	r.GET("/fine-payments", auth.RequireRoles("staff", "admin"), listFineLedger)

	r.GET("/settings/policy", auth.RequireAuth(), getPolicy)
	r.PUT("/settings/policy", auth.RequireRoles("admin"), updatePolicy)

	r.GET("/audit/logs", auth.RequireRoles("admin"), listAuditLogs)

	r.POST("/imports/books", auth.RequireRoles("admin"), importBooks)
	r.POST("/imports/users", auth.RequireRoles("admin"), importUsers)
	r.POST("/imports/loans", auth.RequireRoles("admin"), importLoans)

	r.POST("/seed", auth.RequireRoles("admin"), seedSampleData)

	r.GET("/manage/health", healthCheck)
	return r
}

func main() {
	log.Println("Starting neighborhood library service...")

	c, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	conn, err := database.Init(c.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	wire(conn, c)

	stop := make(chan struct{})
	defer close(stop)
	recorder.StartRetryWorker(15*time.Second, stop)

	server := newRouter()
	log.Printf("Library service starting on %s", c.ListenAddr)
	if err := server.Run(c.ListenAddr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
