package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/thiago-salvador/clubedolivro-sub001/internal/gateway"
	"github.com/thiago-salvador/clubedolivro-sub001/internal/service"
)

// studentID разбирает параметр :id маршрута.
func studentID(req *gateway.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(req.Params["id"])
	return id, err == nil
}

func invalidID() gateway.Envelope {
	return gateway.FailDetails(gateway.CodeValidation, "id must be a valid UUID",
		http.StatusBadRequest, map[string]string{"field": "id"})
}

// ListStudents — GET /students. Пагинация приходит параметрами limit/offset.
func (h *Handlers) ListStudents(ctx context.Context, req *gateway.Request) gateway.Envelope {
	limit, _ := strconv.Atoi(req.Params["limit"])
	offset, _ := strconv.Atoi(req.Params["offset"])
	limit, offset = service.ClampPage(limit, offset)

	students, total, err := h.svc.ListStudents(ctx, limit, offset)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKPage(students, gateway.Meta{
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetStudent — GET /students/:id.
func (h *Handlers) GetStudent(ctx context.Context, req *gateway.Request) gateway.Envelope {
	id, ok := studentID(req)
	if !ok {
		return invalidID()
	}

	student, err := h.svc.StudentByID(ctx, id)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OK(student)
}

// CreateStudent — POST /students. Форму полей гарантирует ValidateRequest.
func (h *Handlers) CreateStudent(ctx context.Context, req *gateway.Request) gateway.Envelope {
	student, err := h.svc.CreateStudent(ctx,
		stringField(req.Body, "name"),
		stringField(req.Body, "email"),
		stringField(req.Body, "phone"),
	)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(student, "student created")
}

// UpdateStudent — PUT /students/:id. Пустые поля не трогаются.
func (h *Handlers) UpdateStudent(ctx context.Context, req *gateway.Request) gateway.Envelope {
	id, ok := studentID(req)
	if !ok {
		return invalidID()
	}

	student, err := h.svc.UpdateStudent(ctx, id,
		stringField(req.Body, "name"),
		stringField(req.Body, "email"),
		stringField(req.Body, "phone"),
	)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(student, "student updated")
}

// DeleteStudent — DELETE /students/:id.
func (h *Handlers) DeleteStudent(ctx context.Context, req *gateway.Request) gateway.Envelope {
	id, ok := studentID(req)
	if !ok {
		return invalidID()
	}

	if err := h.svc.DeleteStudent(ctx, id); err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(nil, "student deleted")
}

// AttachTag — POST /students/:id/tags/:tagId.
func (h *Handlers) AttachTag(ctx context.Context, req *gateway.Request) gateway.Envelope {
	id, ok := studentID(req)
	if !ok {
		return invalidID()
	}

	tag := req.Params["tagId"]
	if tag == "" {
		return gateway.FailDetails(gateway.CodeValidation, "tag is required",
			http.StatusBadRequest, map[string]string{"field": "tagId"})
	}

	student, err := h.svc.AttachTag(ctx, id, tag)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(student, "tag attached")
}

// DetachTag — DELETE /students/:id/tags/:tagId.
func (h *Handlers) DetachTag(ctx context.Context, req *gateway.Request) gateway.Envelope {
	id, ok := studentID(req)
	if !ok {
		return invalidID()
	}

	tag := req.Params["tagId"]
	if tag == "" {
		return gateway.FailDetails(gateway.CodeValidation, "tag is required",
			http.StatusBadRequest, map[string]string{"field": "tagId"})
	}

	student, err := h.svc.DetachTag(ctx, id, tag)
	if err != nil {
		return envelopeFromService(err)
	}

	return gateway.OKMessage(student, "tag detached")
}
