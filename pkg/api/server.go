// Package api provides the HTTP signing service: authenticated clients post
// an unsigned zone and receive it back signed.
package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/piwi3910/zonesign/pkg/config"
	"github.com/piwi3910/zonesign/pkg/dnssec"
	"github.com/piwi3910/zonesign/pkg/security"
	"github.com/piwi3910/zonesign/pkg/zone"
)

const (
	version         = "0.1.0-dev"
	cookieName      = "zonesign_session"
	defaultPassword = "admin"
	tokenExpiry     = 12 * time.Hour

	// Zones can be large; cap request bodies rather than trusting clients.
	maxRequestBody = 32 << 20
)

// Server is the HTTP signing service.
type Server struct {
	config       *config.Config
	key          dnssec.SigningKey
	jwtSecret    []byte
	passwordHash string
	limiter      *security.RateLimiter
	startTime    time.Time
	httpServer   *http.Server
}

// NewServer creates a signing service around the given key.
func NewServer(cfg *config.Config, key dnssec.SigningKey) *Server {
	s := &Server{
		config:    cfg,
		key:       key,
		startTime: time.Now(),
		limiter: security.NewRateLimiter(security.RateLimitConfig{
			RequestsPerSecond: cfg.API.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.API.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			BucketTTL:         5 * time.Minute,
			Enabled:           cfg.API.RateLimit.Enabled,
		}),
	}

	// Per-process JWT secret; sessions do not survive a restart.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Printf("Warning: failed to generate random JWT secret: %v", err)
		secret = []byte("default-insecure-secret-change-me")
	}
	s.jwtSecret = secret

	password := cfg.API.Password
	if password == "" {
		password = defaultPassword
		log.Printf("API: using default password, change it in production")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Warning: failed to hash password: %v", err)
	} else {
		s.passwordHash = string(hash)
	}

	return s
}

// Start starts the signing service.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.API.ListenAddress,
		Handler:           s.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("signing API starting on %s", s.config.API.ListenAddress)

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the service.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Router builds the service's chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.rateLimitMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/auth/login", s.handleLogin)
	r.Post("/api/v1/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/api/v1/sign", s.handleSign)
		r.Get("/api/v1/key", s.handleKey)
	})

	return r
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			s.sendError(w, http.StatusTooManyRequests, "Rate limit exceeded")

			return
		}
		next.ServeHTTP(w, r)
	})
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "Not authenticated")

			return
		}

		token, err := jwt.ParseWithClaims(cookie.Value, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			s.sendError(w, http.StatusUnauthorized, "Invalid token")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")

		return
	}

	if s.passwordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(req.Password)) != nil {
		s.sendError(w, http.StatusUnauthorized, "Invalid credentials")

		return
	}

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to create token")

		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(tokenExpiry.Seconds()),
	})

	s.sendJSON(w, http.StatusOK, AuthResponse{Success: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	s.sendJSON(w, http.StatusOK, AuthResponse{Success: true})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")

		return
	}
	if req.Zone == "" {
		s.sendError(w, http.StatusBadRequest, "Missing zone text")

		return
	}

	rrs, err := zone.ParseZone(strings.NewReader(req.Zone), req.Origin, "request")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())

		return
	}

	validity := s.config.Signing.Validity
	if req.ValiditySeconds > 0 {
		validity = time.Duration(req.ValiditySeconds) * time.Second
	}

	now := time.Now()
	inception := zone.UnixTimeSerial(now.Add(-s.config.Signing.InceptionSkew))
	expiration := zone.UnixTimeSerial(now.Add(validity))

	signed, err := dnssec.SignZone(rrs, s.key, dnssec.SignConfig{
		Expiration: expiration,
		Inception:  inception,
		DNSKEYTTL:  s.config.Keys.TTL,
		NSECTTL:    s.config.Signing.NSECTTL,
	})
	if err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())

		return
	}

	runID := uuid.NewString()
	origin := signed.FindSOA().Owner()
	if s.config.Logging.LogRuns {
		log.Printf("signing run %s: zone %s, %d records", runID, origin, signed.Len())
	}

	var out strings.Builder
	if err := signed.WriteTo(&out); err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to render signed zone")

		return
	}

	s.sendJSON(w, http.StatusOK, SignResponse{
		RunID:       runID,
		Origin:      origin,
		RecordCount: signed.Len(),
		Inception:   uint32(inception),
		Expiration:  uint32(expiration),
		SignedAt:    now,
		Zone:        out.String(),
	})
}

func (s *Server) handleKey(w http.ResponseWriter, _ *http.Request) {
	dnskey, err := s.key.DNSKEY()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, err.Error())

		return
	}
	keyTag, err := s.key.KeyTag()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, err.Error())

		return
	}

	resp := KeyResponse{
		DNSKEY:    dnskey.String(),
		KeyTag:    keyTag,
		Algorithm: dnskey.Algorithm,
	}

	if origin := s.config.Zone.Origin; origin != "" {
		if ds, err := s.key.DS(origin); err == nil {
			resp.DS = ds.String()
		}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now(),
	})
}
