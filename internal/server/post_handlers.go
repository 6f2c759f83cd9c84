package server

import (
	"errors"
	"mime/multipart"

	"feedline/internal/models"
	"feedline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// postForm is the text part of a create or update request. It binds from
// multipart forms and JSON bodies alike.
type postForm struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

// openImage returns the uploaded "images" file, or nil when the request
// carries none. The caller closes the returned file.
func openImage(c *fiber.Ctx) (*service.ImageUpload, multipart.File, error) {
	fh, err := c.FormFile("images")
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil, nil
		}
		return nil, nil, models.NewValidationError("Invalid multipart body")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, models.NewServerError("failed to read upload", err)
	}
	return &service.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
	}, f, nil
}

func closeUpload(f multipart.File) {
	if f != nil {
		_ = f.Close()
	}
}

// GetPosts handles GET /feed/posts
// @Summary List posts
// @Description Newest first, three per page
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Success 200 {object} object{message=string,totalItems=int,posts=[]models.Post,perPage=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /feed/posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":    "Fetched posts successfully.",
		"totalItems": page.TotalItems,
		"posts":      page.Posts,
		"perPage":    page.PerPage,
	})
}

// GetPost handles GET /feed/posts/:postId
// @Summary Get a post
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{message=string,post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /feed/posts/{postId} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.GetPost(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post fetched.", "post": post})
}

// CreatePost handles POST /feed/post
// @Summary Create a post
// @Tags feed
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title (at least 5 characters)"
// @Param content formData string true "Content (at least 5 characters)"
// @Param images formData file true "PNG or JPEG image"
// @Success 201 {object} object{message=string,post=models.Post,creator=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /feed/post [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var form postForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, bodyError(err))
	}
	image, file, err := openImage(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	defer closeUpload(file)

	res, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		CallerID: userID,
		Title:    form.Title,
		Content:  form.Content,
		Image:    image,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully!",
		"post":    res.Post,
		"creator": res.Creator,
	})
}

// UpdatePost handles PUT /feed/post/:postId
// @Summary Update a post
// @Description Replaces title and content. An attached image replaces the current one.
// @Tags feed
// @Accept mpfd,json
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param images formData file false "Replacement image"
// @Success 200 {object} object{message=string,post=models.Post}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /feed/post/{postId} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	postID, err := parseID(c, "postId")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var form postForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, bodyError(err))
	}
	image, file, err := openImage(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	defer closeUpload(file)

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		CallerID: userID,
		PostID:   postID,
		Title:    form.Title,
		Content:  form.Content,
		Image:    image,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post updated!", "post": post})
}

// DeletePost handles DELETE /feed/post/:postId
// @Summary Delete a post
// @Description Deletes the post and then its image. deleteFromS3 reports whether the image was removed.
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{message=string,post=models.Post,deleteFromS3=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /feed/post/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	postID, err := parseID(c, "postId")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.postService.DeletePost(c.UserContext(), userID, postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":      "Deleted post.",
		"post":         res.Post,
		"deleteFromS3": res.DeleteFromS3,
	})
}
