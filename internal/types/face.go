package types

import (
	"errors"
	"time"
)

// FaceEmbedding is a stored reference embedding for one registration.
type FaceEmbedding struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Embedding []float64 `json:"embedding,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FaceMatch is the outcome of a verification attempt.
type FaceMatch struct {
	Matched    bool    `json:"match"`
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

type RegisterFaceRequest struct {
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// IsValid checks if the register request is valid
func (r RegisterFaceRequest) IsValid() error {
	if r.Name == "" {
		return errors.New("invalid name")
	}
	if len(r.Embedding) == 0 {
		return errors.New("invalid embedding")
	}
	return nil
}

type VerifyFaceRequest struct {
	Embedding []float64 `json:"embedding"`
	Threshold float64   `json:"threshold,omitempty"`
}

// IsValid checks if the verify request is valid
func (r VerifyFaceRequest) IsValid() error {
	if len(r.Embedding) == 0 {
		return errors.New("invalid embedding")
	}
	return nil
}

type StoreImageRequest struct {
	ImageData string `json:"imageData"`
}

type StoreImageResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

type GetImageResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData,omitempty"`
	Error     string `json:"error,omitempty"`
}
