package service

import (
	"fmt"
	"strconv"
)

// newID draws the next snowflake and renders it as a decimal string.
func (s *AssetServiceImpl) newID() (string, error) {
	id, err := s.idGen.Next()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// objectKey builds the store key for an asset. The asset ID keeps keys
// unique when the same filename is uploaded to the same parent twice.
func objectKey(parentID, assetID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", parentID, assetID, filename)
}
