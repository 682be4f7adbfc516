package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/metrics"
	"accreditation-api/models"
	"accreditation-api/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	// refreshTokensKept is how many refresh tokens a user may hold at once.
	refreshTokensKept = 5
	resetTokenTTL     = 10 * time.Minute
)

// Claims is the JWT payload of both access and refresh tokens.
type Claims struct {
	UserID    string `json:"id"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type IdentityConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MaxAttempts   int
	LockDuration  time.Duration
}

// IdentityConfigFrom picks the identity settings out of the process settings.
func IdentityConfigFrom(s config.Settings) IdentityConfig {
	return IdentityConfig{
		AccessSecret:  s.JWTSecret,
		RefreshSecret: s.JWTRefreshSecret,
		AccessTTL:     s.AccessTokenTTL,
		RefreshTTL:    s.RefreshTokenTTL,
		MaxAttempts:   s.LoginMaxAttempts,
		LockDuration:  s.LoginLockDuration,
	}
}

type IdentityService struct {
	db       *gorm.DB
	cfg      IdentityConfig
	log      *ActivityLog
	notifier Notifier
	now      func() time.Time
}

func NewIdentityService(db *gorm.DB, cfg IdentityConfig, log *ActivityLog, notifier Notifier) *IdentityService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 2 * time.Hour
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	return &IdentityService{db: db, cfg: cfg, log: log, notifier: notifier, now: time.Now}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func actorOf(u *models.User) *Actor {
	if u == nil {
		return nil
	}
	return &Actor{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

func (s *IdentityService) sign(claims Claims, secret string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        claims.SessionID + "-" + now.Format("20060102150405.000000000"),
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, exp, err
}

func (s *IdentityService) parse(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, unauthorized("Invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, unauthorized("Invalid token claims")
	}
	return claims, nil
}

// ParseAccessToken validates an access token and returns the active user it belongs to.
func (s *IdentityService) ParseAccessToken(ctx context.Context, tokenString string) (*models.User, *Claims, error) {
	claims, err := s.parse(tokenString, s.cfg.AccessSecret)
	if err != nil {
		return nil, nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", claims.UserID).Take(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, nil, unauthorized("User not found")
		}
		return nil, nil, internal("failed to load user", err)
	}
	if user.Status != models.UserActive {
		return nil, nil, unauthorized("Account is not active")
	}
	return &user, claims, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    string
}

// Register creates a user. Accounts created by an admin are active; self-registered ones wait for approval.
func (s *IdentityService) Register(ctx context.Context, creator *Actor, in RegisterInput, rc RequestContext) (*models.User, error) {
	in.Name = utils.SanitizeInput(in.Name)
	in.Email = strings.ToLower(utils.SanitizeInput(in.Email))
	if in.Name == "" || len(in.Name) > 100 {
		return nil, invalid("Name must be between 1 and 100 characters")
	}
	if !utils.ValidateEmail(in.Email) {
		return nil, invalid("Please provide a valid email")
	}
	if ok, msg := utils.ValidatePassword(in.Password); !ok {
		return nil, invalid("%s", msg)
	}
	if in.Role == "" {
		in.Role = models.RoleInstitute
	}
	if !in.Role.Valid() {
		return nil, invalid("Invalid role %q", in.Role)
	}
	byAdmin := creator.Is(models.RoleAdmin)
	if in.Role == models.RoleAdmin && !byAdmin {
		return nil, forbidden("Only admins can create admin accounts")
	}

	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return nil, internal("failed to check email", err)
	}
	if n > 0 {
		s.log.Record(ctx, models.ActionUserCreated, creator, rc, LogDetails{
			Status: models.LogFailure,
			Fields: map[string]interface{}{"email": in.Email, "reason": "User already exists"},
		})
		return nil, invalid("User already exists with this email")
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}
	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: hashed,
		Role:     in.Role,
		Status:   models.UserPending,
		Phone:    strings.TrimSpace(in.Phone),
	}
	if byAdmin {
		user.Status = models.UserActive
	}
	if err := db.Create(user).Error; err != nil {
		return nil, internal("failed to create user", err)
	}

	by := creator
	if by == nil {
		by = actorOf(user)
	}
	s.log.Record(ctx, models.ActionUserCreated, by, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
		Fields: map[string]interface{}{"email": user.Email, "role": user.Role},
	})
	return user, nil
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresIn    int64        `json:"expiresIn"`
	SessionID    string       `json:"sessionId"`
}

func (s *IdentityService) failLogin(ctx context.Context, user *models.User, rc RequestContext, reason string, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["reason"] = reason
	s.log.Record(ctx, models.ActionLoginFailed, actorOf(user), rc, LogDetails{
		Status: models.LogFailure,
		Fields: fields,
	})
}

// Login checks credentials with lockout after repeated failures and opens a new session.
func (s *IdentityService) Login(ctx context.Context, email, password string, rc RequestContext) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid("Please provide email and password")
	}
	db := s.db.WithContext(ctx)
	now := s.now()

	var user models.User
	if err := db.Where("email = ?", email).Take(&user).Error; err != nil {
		if !isNotFound(err) {
			return nil, internal("failed to load user", err)
		}
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		s.failLogin(ctx, nil, rc, "User not found", map[string]interface{}{"email": email})
		return nil, unauthorized("Invalid credentials")
	}

	if user.IsLocked(now) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.failLogin(ctx, &user, rc, "Account locked", map[string]interface{}{"email": email})
		return nil, unauthorized("Account is locked due to multiple failed login attempts. Please try again later.")
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		attempts, locked, err := s.registerFailure(db, &user, now)
		if err != nil {
			return nil, err
		}
		s.failLogin(ctx, &user, rc, "Invalid password", map[string]interface{}{"email": email, "loginAttempts": attempts})
		if locked {
			s.log.Record(ctx, models.ActionAccountLocked, actorOf(&user), rc, LogDetails{
				Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
				Fields: map[string]interface{}{"loginAttempts": attempts, "lockUntil": user.LockUntil},
			})
		}
		return nil, unauthorized("Invalid credentials")
	}

	if user.Status != models.UserActive {
		s.failLogin(ctx, &user, rc, "Account not active", map[string]interface{}{"email": email, "accountStatus": user.Status})
		return nil, unauthorized("Account is not active. Please contact administrator.")
	}

	sessionID, err := randomHex(16)
	if err != nil {
		return nil, internal("failed to create session", err)
	}
	claims := Claims{UserID: user.ID, Role: string(user.Role), SessionID: sessionID}
	access, accessExp, err := s.sign(claims, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, internal("failed to sign access token", err)
	}
	refresh, refreshExp, err := s.sign(claims, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, internal("failed to sign refresh token", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"login_attempts": 0,
			"lock_until":     nil,
			"last_login":     now,
			"updated_at":     now,
		}).Error; err != nil {
			return internal("failed to update user", err)
		}
		if err := tx.Create(&models.RefreshToken{
			UserID:    user.ID,
			TokenHash: utils.HashToken(refresh),
			SessionID: sessionID,
			ExpiresAt: refreshExp,
		}).Error; err != nil {
			return internal("failed to store refresh token", err)
		}
		return pruneRefreshTokens(tx, user.ID)
	})
	if err != nil {
		return nil, err
	}
	user.LoginAttempts, user.LockUntil, user.LastLogin = 0, nil, &now
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	rc.SessionID = sessionID
	s.log.Record(ctx, models.ActionLogin, actorOf(&user), rc, LogDetails{
		Fields: map[string]interface{}{"email": user.Email, "role": user.Role, "sessionId": sessionID},
	})
	return &Session{
		User:         &user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessExp.Sub(now).Seconds()),
		SessionID:    sessionID,
	}, nil
}

// registerFailure counts one bad password and locks the account at the attempt limit.
// An expired lock starts the count over.
func (s *IdentityService) registerFailure(db *gorm.DB, user *models.User, now time.Time) (int, bool, error) {
	attempts := user.LoginAttempts + 1
	if user.LockUntil != nil && !user.LockUntil.After(now) {
		attempts = 1
		user.LockUntil = nil
	}
	updates := map[string]interface{}{"login_attempts": attempts, "lock_until": user.LockUntil}
	locked := false
	if attempts >= s.cfg.MaxAttempts {
		until := now.Add(s.cfg.LockDuration)
		user.LockUntil = &until
		updates["lock_until"] = until
		locked = true
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return 0, false, internal("failed to record login attempt", err)
	}
	user.LoginAttempts = attempts
	return attempts, locked, nil
}

// pruneRefreshTokens keeps only the newest live refresh tokens of a user.
func pruneRefreshTokens(tx *gorm.DB, userID string) error {
	var keep []string
	if err := tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("created_at DESC").Limit(refreshTokensKept).
		Pluck("id", &keep).Error; err != nil {
		return internal("failed to load refresh tokens", err)
	}
	if len(keep) < refreshTokensKept {
		return nil
	}
	if err := tx.Where("user_id = ? AND id NOT IN ?", userID, keep).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return internal("failed to prune refresh tokens", err)
	}
	return nil
}

// Refresh issues a new access token for a stored, unrevoked refresh token.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, unauthorized("Refresh token not provided")
	}
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return nil, unauthorized("Invalid refresh token")
	}
	db := s.db.WithContext(ctx)
	now := s.now()

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?",
		utils.HashToken(refreshToken), claims.UserID, now).Take(&stored).Error; err != nil {
		if isNotFound(err) {
			return nil, unauthorized("Invalid refresh token")
		}
		return nil, internal("failed to load refresh token", err)
	}
	var user models.User
	if err := db.Where("id = ?", claims.UserID).Take(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, unauthorized("Invalid refresh token")
		}
		return nil, internal("failed to load user", err)
	}
	if user.Status != models.UserActive {
		return nil, unauthorized("Account is not active. Please contact administrator.")
	}

	access, exp, err := s.sign(Claims{UserID: user.ID, Role: string(user.Role), SessionID: claims.SessionID},
		s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, internal("failed to sign access token", err)
	}
	return &Session{
		User:        &user,
		AccessToken: access,
		ExpiresIn:   int64(exp.Sub(now).Seconds()),
		SessionID:   claims.SessionID,
	}, nil
}

// Logout revokes the given refresh token. An empty token only records the logout.
func (s *IdentityService) Logout(ctx context.Context, actor *Actor, refreshToken string, rc RequestContext) error {
	if refreshToken != "" && actor != nil {
		if err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
			Where("user_id = ? AND token_hash = ? AND revoked_at IS NULL", actor.ID, utils.HashToken(refreshToken)).
			Update("revoked_at", s.now()).Error; err != nil {
			return internal("failed to revoke refresh token", err)
		}
	}
	s.log.Record(ctx, models.ActionLogout, actor, rc, LogDetails{
		Fields: map[string]interface{}{"sessionId": rc.SessionID},
	})
	return nil
}

func revokeAllRefreshTokens(tx *gorm.DB, userID string, now time.Time) error {
	if err := tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error; err != nil {
		return internal("failed to revoke sessions", err)
	}
	return nil
}

// ForgotPassword mails a short-lived reset token. Unknown emails succeed silently.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string, rc RequestContext) error {
	email = strings.ToLower(utils.SanitizeInput(email))
	if !utils.ValidateEmail(email) {
		return invalid("Invalid email format")
	}
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", email).Take(&user).Error; err != nil {
		if !isNotFound(err) {
			return internal("failed to load user", err)
		}
		s.log.Record(ctx, models.ActionPasswordReset, nil, rc, LogDetails{
			Status: models.LogFailure,
			Fields: map[string]interface{}{"email": email, "reason": "User not found"},
		})
		return nil
	}

	raw, err := randomHex(20)
	if err != nil {
		return internal("failed to create reset token", err)
	}
	expires := s.now().Add(resetTokenTTL)
	hashed := utils.HashToken(raw)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"reset_password_token":  hashed,
		"reset_password_expire": expires,
	}).Error; err != nil {
		return internal("failed to store reset token", err)
	}

	s.notifier.SendPasswordReset(user.Email, raw, user.Name)
	s.log.Record(ctx, models.ActionPasswordReset, actorOf(&user), rc, LogDetails{
		Fields: map[string]interface{}{"email": user.Email, "stage": "requested"},
	})
	return nil
}

// ResetPassword sets a new password for a valid reset token and ends every session.
func (s *IdentityService) ResetPassword(ctx context.Context, token, password string, rc RequestContext) error {
	if ok, msg := utils.ValidatePassword(password); !ok {
		return invalid("%s", msg)
	}
	db := s.db.WithContext(ctx)
	now := s.now()

	var user models.User
	if err := db.Where("reset_password_token = ? AND reset_password_expire > ?", utils.HashToken(token), now).
		Take(&user).Error; err != nil {
		if isNotFound(err) {
			return invalid("Invalid or expired reset token")
		}
		return internal("failed to load user", err)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return internal("failed to hash password", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"password":              hashed,
			"reset_password_token":  nil,
			"reset_password_expire": nil,
			"login_attempts":        0,
			"lock_until":            nil,
			"updated_at":            now,
		}).Error; err != nil {
			return internal("failed to update password", err)
		}
		return revokeAllRefreshTokens(tx, user.ID, now)
	})
	if err != nil {
		return err
	}
	s.log.Record(ctx, models.ActionPasswordReset, actorOf(&user), rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
		Fields: map[string]interface{}{"stage": "completed"},
	})
	return nil
}

func (s *IdentityService) loadUser(tx *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("User not found")
		}
		return nil, internal("failed to load user", err)
	}
	return &user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, actor *Actor, current, next string, rc RequestContext) error {
	db := s.db.WithContext(ctx)
	user, err := s.loadUser(db, actor.ID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(current, user.Password) {
		return unauthorized("Current password is incorrect")
	}
	if ok, msg := utils.ValidatePassword(next); !ok {
		return invalid("%s", msg)
	}
	hashed, err := utils.HashPassword(next)
	if err != nil {
		return internal("failed to hash password", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"password": hashed, "updated_at": s.now()}).Error; err != nil {
		return internal("failed to update password", err)
	}
	s.log.Record(ctx, models.ActionPasswordChanged, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
	})
	return nil
}

// Profile returns the caller's user record.
func (s *IdentityService) Profile(ctx context.Context, actor *Actor) (*models.User, error) {
	return s.loadUser(s.db.WithContext(ctx), actor.ID)
}

// UpdateProfile edits the caller's name and phone.
func (s *IdentityService) UpdateProfile(ctx context.Context, actor *Actor, name, phone *string, rc RequestContext) (*models.User, error) {
	db := s.db.WithContext(ctx)
	user, err := s.loadUser(db, actor.ID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if name != nil {
		n := utils.SanitizeInput(*name)
		if n == "" || len(n) > 100 {
			return nil, invalid("Name must be between 1 and 100 characters")
		}
		updates["name"] = n
		user.Name = n
	}
	if phone != nil {
		updates["phone"] = strings.TrimSpace(*phone)
		user.Phone = strings.TrimSpace(*phone)
	}
	if len(updates) == 0 {
		return user, nil
	}
	updates["updated_at"] = s.now()
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, internal("failed to update profile", err)
	}
	s.log.Record(ctx, models.ActionUserUpdated, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
	})
	return user, nil
}

// SetUserStatus lets an admin activate, suspend or deactivate an account.
// Leaving active ends the user's sessions.
func (s *IdentityService) SetUserStatus(ctx context.Context, actor *Actor, userID string, status models.UserStatus, rc RequestContext) (*models.User, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can change user status")
	}
	if !status.Valid() {
		return nil, invalid("Invalid user status %q", status)
	}
	if userID == actor.ID && status != models.UserActive {
		return nil, invalid("You cannot deactivate your own account")
	}
	db := s.db.WithContext(ctx)
	user, err := s.loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	old := user.Status
	now := s.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]interface{}{"status": status, "updated_at": now}).Error; err != nil {
			return internal("failed to update user status", err)
		}
		if status != models.UserActive {
			return revokeAllRefreshTokens(tx, user.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Status = status

	s.log.Record(ctx, models.ActionUserStatusChanged, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceUser, ID: user.ID, Name: user.Name},
		Fields: map[string]interface{}{"oldStatus": old, "newStatus": status},
	})
	return user, nil
}

type UserFilter struct {
	Role   string
	Status string
	Search string
	Page   utils.Pagination
}

type UserPage struct {
	Users      []models.User    `json:"users"`
	Pagination utils.Pagination `json:"pagination"`
}

// ListUsers pages through accounts, newest first.
func (s *IdentityService) ListUsers(ctx context.Context, f UserFilter) (*UserPage, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.Page.Limit == 0 {
		f.Page = utils.NewPagination("", "", utils.DefaultPageLimit)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, internal("failed to count users", err)
	}
	var users []models.User
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").
		Limit(f.Page.Limit).Offset(f.Page.Offset()).Find(&users).Error; err != nil {
		return nil, internal("failed to load users", err)
	}
	return &UserPage{Users: users, Pagination: f.Page.WithTotal(total)}, nil
}
