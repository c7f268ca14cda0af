package auth

import (
	"log"
	"strconv"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtAlgorithm = jwt.SigningMethodHS256

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims. Subject carries the account id.
type Claims struct {
	Username string       `json:"username"`
	Role     session.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into an account id
func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Issuer signs and verifies access tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// CreateToken creates a new JWT token for an account
func (i *Issuer) CreateToken(id uint, username string, role session.Role) (string, error) {
	now := i.now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(i.secret)
}

// VerifyToken verifies a JWT token
func (i *Issuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})

	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	switch claims.Role {
	case session.RoleAdmin, session.RoleArea, session.RoleWorker:
	default:
		return nil, errors.Wrapf(ErrInvalidToken, "unknown role %q", claims.Role)
	}

	return claims, nil
}

// EnsureAdminExists creates the default admin when there is none
func EnsureAdminExists(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&database.AdminUser{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count admins")
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := database.AdminUser{
		Username:     username,
		PasswordHash: hash,
	}

	if err := db.Create(&user).Error; err != nil {
		return errors.Wrap(err, "create default admin")
	}
	log.Printf("Default admin user created: %s", username)
	return nil
}
