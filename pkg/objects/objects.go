package objects

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/libs"
)

var (
	Manager    *libs.Manager
	Config     contracts.Config
	ViewEngine fiber.Views
	Layout     string
)
