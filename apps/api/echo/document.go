package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/document"
)

const documentFileField = "file"

type documentApi struct {
	svc           document.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerDocumentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := documentApi{
		svc:           deps.DocumentSvc,
		validate:      deps.Validate,
		maxUploadSize: deps.Conf.Server.MaxUploadSize,
	}

	dg := g.Group("/documents", authed...)
	dg.GET("", api.query)
	dg.POST("", api.upload)
	dg.GET("/:id", api.retrieve)
	dg.GET("/:id/download", api.download)
	dg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *documentApi) query(ctx echo.Context) error {
	filter := new(document.Filter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	docs, err := api.svc.Fetch(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "fetching documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (api *documentApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	req := ctx.Request()
	if api.maxUploadSize > 0 {
		req.Body = http.MaxBytesReader(ctx.Response(), req.Body, api.maxUploadSize)
	}
	if err = req.ParseMultipartForm(32 << 20); err != nil {
		return core.NewValidationError(errors.Wrap(err, "invalid multipart form"), core.FieldError{
			Field: documentFileField,
			Error: "the upload is not a valid form or is too large",
		})
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	data := document.NewDocument{
		Title:       req.FormValue("title"),
		Description: req.FormValue("description"),
		Category:    req.FormValue("category"),
		Tags:        req.FormValue("tags"),
	}
	if p := req.FormValue("price"); p != "" {
		price, pErr := strconv.ParseFloat(p, 64)
		if pErr != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "must be a number"})
		}
		data.Price = &price
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile(documentFileField)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: documentFileField, Error: "this field is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = file.Close() }()

	doc, err := api.svc.Upload(req.Context(), usr, data, document.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Content:     file,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	doc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *documentApi) download(ctx echo.Context) error {
	fileURL, err := api.svc.Download(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, fileURL)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), usr); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
