package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/common"
	"github.com/facepay/facepay/storage"
)

// ErrImageTooLarge is returned when a capture exceeds the upload cap.
var ErrImageTooLarge = errors.New("image data too large")

const maxImageSize = 10 * 1024 * 1024

const imageTokenPrefix = "image_token:"

// ImageStore hands a captured frame from the companion app to the
// verifying web client: the frame is compressed into block storage and
// addressed by a short-lived token that expires with the payment window.
type ImageStore struct {
	block  *storage.BlockStorage
	tokens *storage.RedisStorage
	ttl    time.Duration
	logger *logrus.Logger
}

func NewImageStore(block *storage.BlockStorage, tokens *storage.RedisStorage, ttl time.Duration) *ImageStore {
	return &ImageStore{
		block:  block,
		tokens: tokens,
		ttl:    ttl,
		logger: logrus.WithField("service", "image-store").Logger,
	}
}

func (s *ImageStore) Put(ctx context.Context, imageData string) (string, error) {
	if imageData == "" {
		return "", errors.New("image data is required")
	}
	if len(imageData) > maxImageSize {
		return "", ErrImageTooLarge
	}

	compressed, err := common.CompressData([]byte(imageData))
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	objectKey := "captures/" + token
	if err := s.block.UploadFile(ctx, compressed, objectKey); err != nil {
		return "", fmt.Errorf("fail to upload image, err: %w", err)
	}
	if err := s.tokens.Set(ctx, imageTokenPrefix+token, objectKey, s.ttl); err != nil {
		return "", fmt.Errorf("fail to store image token, err: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"token": token,
		"size":  len(imageData),
	}).Info("image stored")
	return token, nil
}

func (s *ImageStore) Get(ctx context.Context, token string) (string, error) {
	objectKey, err := s.tokens.Get(ctx, imageTokenPrefix+token)
	if errors.Is(err, storage.ErrNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fail to resolve image token, err: %w", err)
	}

	compressed, err := s.block.GetFile(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("fail to read image, err: %w", err)
	}
	raw, err := common.DecompressData(compressed)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
