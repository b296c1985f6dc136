package controller

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/velmark/draftline/internal/controller/jwt"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

func New(libSrv Library, jwtC *jwtController.JWT, tmpDir string) *fiber.App {
	libCtr := libraryController{
		srv:    libSrv,
		tmpDir: tmpDir,
	}

	app := fiber.New(fiber.Config{
		EnableSplittingOnParsers: true,
	})

	app.Use(jwtC.AuthRequired())

	app.Get("/", libCtr.allMaterials)
	app.Get("/search", libCtr.searchMaterial)
	app.Post("/", libCtr.newMaterial)
	app.Get("/:id", libCtr.material)
	app.Delete("/:id", libCtr.deleteMaterial)

	return app
}

type libraryController struct {
	srv    Library
	tmpDir string
}

type Library interface {
	NewMaterial(ctx context.Context, uploadPath string, name string) (models.Material, error)
	Material(ctx context.Context, id int64) (models.Material, error)
	AllMaterials(ctx context.Context) ([]models.Material, error)
	SearchMaterial(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error)
	DeleteMaterial(ctx context.Context, id int64) error
}

// allMaterials returns all registered materials.
func (libCtr *libraryController) allMaterials(c *fiber.Ctx) error {
	materials, err := libCtr.srv.AllMaterials(context.TODO())
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"library": materials,
	})
}

// searchMaterial returns materials filtered and sorted
// by query criteria.
func (libCtr *libraryController) searchMaterial(c *fiber.Ctx) error {
	filter := models.MaterialFilter{
		Name:       c.Query("name"),
		Kind:       models.MaterialKind(c.Query("kind")),
		MaxRespLen: c.QueryInt("res_len"),
	}

	materials, err := libCtr.srv.SearchMaterial(context.TODO(), filter)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"library": materials,
	})
}

// newMaterial saves sended file and registers material
func (libCtr *libraryController) newMaterial(c *fiber.Ctx) error {
	name := c.FormValue("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}

	file, err := c.FormFile("source")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid file",
		})
	}

	tmpFile, err := os.CreateTemp(libCtr.tmpDir, "upload-*")
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	tmpFileName := tmpFile.Name()
	tmpFile.Close()

	if err := c.SaveFile(file, tmpFileName); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	defer os.Remove(tmpFileName)

	material, err := libCtr.srv.NewMaterial(context.TODO(), tmpFileName, name)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMaterial) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unsupported material type",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"material": material,
	})
}

// material return json with material by id
func (libCtr *libraryController) material(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	material, err := libCtr.srv.Material(context.TODO(), id)
	if err != nil {
		if errors.Is(err, service.ErrMaterialNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "material not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"material": material,
	})
}

// deleteMaterial deletes material
func (libCtr *libraryController) deleteMaterial(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad id",
		})
	}

	err = libCtr.srv.DeleteMaterial(context.TODO(), id)
	if err != nil {
		if errors.Is(err, service.ErrMaterialNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "material not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
