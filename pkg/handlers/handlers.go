package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/config"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	ctxUserID    = "userID"
	ctxUsername  = "username"
	ctxRole      = "role"
	ctxRequestID = "requestID"

	HeaderRequestID = "X-Request-ID"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB     *gorm.DB
	Auth   *auth.Issuer
	Config *config.Config
	Now    func() time.Time
}

func New(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{
		DB:     db,
		Auth:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Config: cfg,
		Now:    time.Now,
	}
}

// now is the current time in the configured timezone
func (h *Handler) now() time.Time {
	t := h.Now()
	if h.Config != nil && h.Config.Location != nil {
		t = t.In(h.Config.Location)
	}
	return t
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindJSON binds the body and answers 400 with per-field messages on failure
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": translateErrors(verrs),
		})
		return false
	}
	fail(c, http.StatusBadRequest, err.Error())
	return false
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryID reads an optional numeric query parameter
func queryID(c *gin.Context, name string) (uint, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, errors.Errorf("invalid %s", name)
	}
	return uint(id), true, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

// dbError maps storage errors onto responses
func dbError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, what+" not found")
	case isDuplicate(err):
		fail(c, http.StatusConflict, what+" already exists")
	default:
		log.Printf("[ERR] id=%s %s: %+v", c.GetString(ctxRequestID), what, err)
		fail(c, http.StatusInternalServerError, "could not process "+what)
	}
}

// RequestID tags every request and logs it once done
func (h *Handler) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		start := time.Now()
		c.Next()
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// AuthMiddleware verifies the bearer token and stores the caller
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			fail(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
			token = token[7:]
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(ctxUserID, claims.UserID())
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole lets through only the given roles
func (h *Handler) RequireRole(roles ...session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := currentRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		fail(c, http.StatusForbidden, "not allowed for role "+string(role))
	}
}

func currentRole(c *gin.Context) session.Role {
	r, _ := c.Get(ctxRole)
	role, _ := r.(session.Role)
	return role
}

func currentUserID(c *gin.Context) uint {
	v, _ := c.Get(ctxUserID)
	id, _ := v.(uint)
	return id
}

// supervisorArea returns the area of the calling supervisor. scoped is false
// for admins, who see every area.
func (h *Handler) supervisorArea(c *gin.Context) (areaID uint, scoped bool, okay bool) {
	if currentRole(c) != session.RoleArea {
		return 0, false, true
	}
	var s database.Supervisor
	if err := h.DB.First(&s, currentUserID(c)).Error; err != nil {
		fail(c, http.StatusUnauthorized, "supervisor account no longer exists")
		return 0, true, false
	}
	return s.AreaID, true, true
}

// Health answers load balancer probes. It also publishes the timezone
// attendance days are counted in so clients can agree on "today".
func (h *Handler) Health(c *gin.Context) {
	now := h.now()
	_, offset := now.Zone()
	ok(c, http.StatusOK, gin.H{
		"status":     "ok",
		"time":       now,
		"timezone":   now.Location().String(),
		"utc_offset": offset,
	})
}

type account struct {
	id       uint
	username string
	hash     string
	user     session.User
}

func (h *Handler) login(c *gin.Context, role session.Role, find func(username string) (account, error)) {
	var req models.LoginInput
	if !bindJSON(c, &req) {
		return
	}

	acc, err := find(strings.TrimSpace(req.Username))
	if err != nil || !auth.CheckPasswordHash(req.Password, acc.hash) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Auth.CreateToken(acc.id, acc.username, role)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not create token")
		return
	}

	ok(c, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        role,
		User:        acc.user,
	})
}

// AdminLogin handles admin login
func (h *Handler) AdminLogin(c *gin.Context) {
	h.login(c, session.RoleAdmin, func(username string) (account, error) {
		var u database.AdminUser
		if err := h.DB.Where("username = ?", username).First(&u).Error; err != nil {
			return account{}, err
		}
		return account{u.ID, u.Username, u.PasswordHash, session.User{ID: u.ID, Username: u.Username}}, nil
	})
}

// SupervisorLogin handles area staff login
func (h *Handler) SupervisorLogin(c *gin.Context) {
	h.login(c, session.RoleArea, func(username string) (account, error) {
		var s database.Supervisor
		if err := h.DB.Where("username = ?", username).First(&s).Error; err != nil {
			return account{}, err
		}
		return account{s.ID, s.Username, s.PasswordHash, session.User{ID: s.ID, Username: s.Username, FullName: s.FullName, AreaID: s.AreaID}}, nil
	})
}

// WorkerLogin handles worker login
func (h *Handler) WorkerLogin(c *gin.Context) {
	h.login(c, session.RoleWorker, func(username string) (account, error) {
		var w database.Worker
		if err := h.DB.Where("username = ?", username).First(&w).Error; err != nil {
			return account{}, err
		}
		return account{w.ID, w.Username, w.PasswordHash, session.User{ID: w.ID, Username: w.Username, FullName: w.FullName, AreaID: w.AreaID}}, nil
	})
}

// Me returns the profile behind the token
func (h *Handler) Me(c *gin.Context) {
	id := currentUserID(c)
	var user session.User
	var err error
	switch currentRole(c) {
	case session.RoleAdmin:
		var u database.AdminUser
		err = h.DB.First(&u, id).Error
		user = session.User{ID: u.ID, Username: u.Username}
	case session.RoleArea:
		var s database.Supervisor
		err = h.DB.First(&s, id).Error
		user = session.User{ID: s.ID, Username: s.Username, FullName: s.FullName, AreaID: s.AreaID}
	default:
		var w database.Worker
		err = h.DB.First(&w, id).Error
		user = session.User{ID: w.ID, Username: w.Username, FullName: w.FullName, AreaID: w.AreaID}
	}
	if err != nil {
		dbError(c, err, "account")
		return
	}
	ok(c, http.StatusOK, gin.H{"role": currentRole(c), "user": user})
}
