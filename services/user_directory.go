package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"

	"climate-repair-server/models"
	"climate-repair-server/policy"
	"climate-repair-server/utils"
)

// UserDirectory stores accounts and authenticates them.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// Register creates an account from a self-service registration.
func (d *UserDirectory) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	role, ok := models.ParseRole(strings.TrimSpace(in.Role))
	if !ok {
		return nil, validationError("invalid role %q", in.Role)
	}

	login := strings.TrimSpace(in.Login)
	phone := utils.NormalizePhone(in.Phone)
	fio := strings.TrimSpace(in.FullName)
	switch {
	case len([]rune(login)) < 3:
		return nil, validationError("login must be at least 3 characters")
	case len([]rune(fio)) < 3:
		return nil, validationError("full name must be at least 3 characters")
	case len(phone) < 10:
		return nil, validationError("phone must be at least 10 characters")
	case len(in.Password) < 6:
		return nil, validationError("password must be at least 6 characters")
	}

	db := d.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("login = ?", login).Count(&count).Error; err != nil {
		return nil, storageError("check login", err)
	}
	if count > 0 {
		return nil, validationError("login already exists")
	}
	if err := db.Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
		return nil, storageError("check phone", err)
	}
	if count > 0 {
		return nil, validationError("phone already registered")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, storageError("hash password", err)
	}

	user := models.User{
		FullName:     fio,
		Phone:        phone,
		Login:        login,
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validationError("login or phone already exists")
		}
		return nil, storageError("create user", err)
	}

	log.Printf("users: registered %s (id=%d, role=%s)", user.Login, user.ID, user.Role)
	return &user, nil
}

// CreateByManager lets a manager open an account on someone's behalf.
func (d *UserDirectory) CreateByManager(ctx context.Context, actor models.Actor, in models.RegisterInput) (*models.User, error) {
	if !policy.Can(actor.Role, policy.CreateUser, false) {
		return nil, forbidden("only managers can create users")
	}
	return d.Register(ctx, in)
}

// Authenticate checks a login/password pair. Unknown logins and wrong passwords
// produce the same error.
func (d *UserDirectory) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := d.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthenticated("invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, unauthenticated("invalid credentials")
	}
	return user, nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, storageError("find user", err)
	}
	return &user, nil
}

func (d *UserDirectory) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("login = ?", login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, storageError("find user by login", err)
	}
	return &user, nil
}

// List returns every account ordered by full name.
func (d *UserDirectory) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := d.db.WithContext(ctx).Order("fio ASC").Find(&users).Error; err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}

func (d *UserDirectory) ListSpecialists(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := d.db.WithContext(ctx).
		Where("role = ?", models.RoleSpecialist).
		Order("fio ASC").
		Find(&users).Error; err != nil {
		return nil, storageError("list specialists", err)
	}
	return users, nil
}

// SpecialistStats reports, per specialist, how many assigned requests are completed
// and the mean feedback rating across them.
func (d *UserDirectory) SpecialistStats(ctx context.Context) ([]models.SpecialistStats, error) {
	specialists, err := d.ListSpecialists(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		MasterID  uint
		Completed int64
	}
	var completed []row
	if err := d.db.WithContext(ctx).Model(&models.RepairRequest{}).
		Select("master_id, COUNT(*) AS completed").
		Where("master_id IS NOT NULL AND request_status = ?", models.StatusCompleted).
		Group("master_id").
		Scan(&completed).Error; err != nil {
		return nil, storageError("count completed by specialist", err)
	}

	type ratingRow struct {
		MasterID uint
		Total    int64
		Rated    int64
	}
	var ratings []ratingRow
	if err := d.db.WithContext(ctx).Table("feedback").
		Select("repair_requests.master_id AS master_id, SUM(feedback.rating) AS total, COUNT(feedback.id) AS rated").
		Joins("JOIN repair_requests ON repair_requests.id = feedback.repair_request_id").
		Where("repair_requests.master_id IS NOT NULL AND repair_requests.request_status = ?", models.StatusCompleted).
		Group("repair_requests.master_id").
		Scan(&ratings).Error; err != nil {
		return nil, storageError("average rating by specialist", err)
	}

	completedBy := make(map[uint]int64, len(completed))
	for _, r := range completed {
		completedBy[r.MasterID] = r.Completed
	}
	ratingBy := make(map[uint]ratingRow, len(ratings))
	for _, r := range ratings {
		ratingBy[r.MasterID] = r
	}

	out := make([]models.SpecialistStats, 0, len(specialists))
	for _, s := range specialists {
		st := models.SpecialistStats{
			ID:                s.ID,
			FullName:          s.FullName,
			Phone:             s.Phone,
			Role:              s.Role,
			CompletedRequests: completedBy[s.ID],
		}
		if r, ok := ratingBy[s.ID]; ok && r.Rated > 0 {
			avg := roundTo(float64(r.Total)/float64(r.Rated), 1)
			st.AverageRating = &avg
		}
		out = append(out, st)
	}
	sortSpecialistStats(out)
	return out, nil
}

// sortSpecialistStats orders by completed work, busiest first, then by name.
func sortSpecialistStats(stats []models.SpecialistStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].CompletedRequests != stats[j].CompletedRequests {
			return stats[i].CompletedRequests > stats[j].CompletedRequests
		}
		return stats[i].FullName < stats[j].FullName
	})
}

// Delete removes an account. Requests the user filed go with it, together with their
// comments, feedback and history; requests assigned to the user become unassigned.
func (d *UserDirectory) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if !policy.Can(actor.Role, policy.DeleteUser, false) {
		return forbidden("only managers can delete users")
	}
	if actor.ID == id {
		return forbidden("you cannot delete your own account")
	}
	if _, err := d.FindByID(ctx, id); err != nil {
		return err
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&models.RepairRequest{}).Select("id").Where("client_id = ?", id)

		if err := tx.Where("request_id IN (?)", owned).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repair_request_id IN (?)", owned).Delete(&models.Feedback{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id IN (?)", owned).Delete(&models.RequestEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.RepairRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("master_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RepairRequest{}).
			Where("master_id = ?", id).
			Update("master_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return storageError("delete user", err)
	}

	log.Printf("users: user %d deleted by %d", id, actor.ID)
	return nil
}
