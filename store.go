package imagefusion

import "fmt"

// srcKey identifies one source image by resolution tag and acquisition
// date.
type srcKey struct {
	tag  string
	date int
}

// SrcImages is the multi-resolution store every fusor pulls its sources
// from: a mapping (resolution tag, date) -> image. Mutation is not
// concurrency-safe; concurrent reads are, which is all the prediction
// stripes do.
type SrcImages struct {
	m map[srcKey]*ConstImage
}

func NewSrcImages() *SrcImages {
	return &SrcImages{m: map[srcKey]*ConstImage{}}
}

// Set stores an image under (tag, date), replacing any previous entry. The
// store keeps a shared read-only view.
func (s *SrcImages) Set(tag string, date int, im *Image) {
	s.m[srcKey{tag, date}] = im.Const()
}

// Get returns the image stored under (tag, date) or a NotFoundError.
func (s *SrcImages) Get(tag string, date int) (*ConstImage, error) {
	im, ok := s.m[srcKey{tag, date}]
	if !ok {
		return nil, NotFoundError{Msg: fmt.Sprintf("no image for tag %q at date %d", tag, date)}
	}
	return im, nil
}

// GetAny returns any stored image, used to learn the common size and type.
// It returns nil on an empty store.
func (s *SrcImages) GetAny() *ConstImage {
	for _, im := range s.m {
		return im
	}
	return nil
}

// Count reports how many images are stored under (tag, date): 0 or 1.
func (s *SrcImages) Count(tag string, date int) int {
	if _, ok := s.m[srcKey{tag, date}]; ok {
		return 1
	}
	return 0
}

// Remove drops the entry under (tag, date) if present.
func (s *SrcImages) Remove(tag string, date int) {
	delete(s.m, srcKey{tag, date})
}

// Len is the total number of stored images.
func (s *SrcImages) Len() int { return len(s.m) }
