package handlers

import (
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain enum validators to gin's binding engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("deliverytype", func(fl validator.FieldLevel) bool {
		return domain.DeliveryType(fl.Field().String()).IsValid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("issuetype", func(fl validator.FieldLevel) bool {
		return domain.IssueType(fl.Field().String()).IsValid()
	})
}
