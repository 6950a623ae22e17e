package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// deletionGrace is how long a deleted account can still be recovered by
// logging in.
const deletionGrace = 7 * 24 * time.Hour

type UpdateProfileReq struct {
	DisplayName string `json:"display_name" binding:"max=64"`
}

type ChangePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req UpdateProfileReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid parameters")
			return
		}

		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if err := db.Model(user).Update("display_name", req.DisplayName).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "update failed")
			return
		}
		user.DisplayName = req.DisplayName

		util.Success(c, util.Response{"user": userView(user)})
	}
}

func ChangePassword(db *gorm.DB, bcryptCost int) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		var req ChangePasswordReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid parameters")
			return
		}
		if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
			badRequest(c, "current password is wrong")
			return
		}
		if !isStrongPassword(req.NewPassword) {
			badRequest(c, "password must be 8-32 characters with upper case, lower case and digits")
			return
		}

		hash, err := util.HashPasswordCost(req.NewPassword, bcryptCost)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "hash password failed")
			return
		}
		if err := db.Model(user).Update("password_hash", hash).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "update password failed")
			return
		}

		util.Success(c, util.Response{"message": "password changed, log in again"})
	}
}

// DeleteAccount schedules the user for removal. The scheduler skips the
// user from now on; logging in within the grace period undoes it.
func DeleteAccount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		if user.DeletedAt != nil {
			badRequest(c, "account already scheduled for deletion")
			return
		}

		now := time.Now()
		permanentlyAt := now.Add(deletionGrace)
		user.DeletedAt = &now
		user.DeletePermanentlyAt = &permanentlyAt

		if err := db.Save(user).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "delete failed, try again")
			return
		}

		util.Success(c, util.Response{
			"message":               "account scheduled for deletion",
			"deleted_at":            now,
			"delete_permanently_at": permanentlyAt,
		})
	}
}
