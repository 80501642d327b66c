package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

// maxBodyBytes bounds JSON request bodies. A full inspection with a few
// hundred strings stays well below it.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. An empty body is EINVALID.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "handler.decode"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body exceeds %d bytes", maxBodyBytes)
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Wrap(err, domain.EINVALID, op, "Request body is not valid JSON: "+err.Error())
		}
	}
	return nil
}

// reportID parses the {id} path value.
func reportID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.report_id", "Invalid report ID")
	}
	return id, nil
}

// pathInt parses an integer path value such as a defect position.
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, domain.Errorf(domain.EINVALID, "handler.path", "%s must be an integer", name)
	}
	return n, nil
}

// defectPath parses the {id} and {n} path values of the defect routes.
func defectPath(r *http.Request) (uuid.UUID, int, error) {
	id, err := reportID(r)
	if err != nil {
		return uuid.Nil, 0, err
	}
	n, err := pathInt(r, "n")
	if err != nil {
		return uuid.Nil, 0, err
	}
	return id, n, nil
}
