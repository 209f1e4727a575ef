package scene

import "github.com/pkg/errors"

// uploadLights mirrors the parsed point lights into a single device array.
func (up *uploader) uploadLights(lights []LightProp, out *Buffer[LightProp]) error {
	if len(lights) == 0 {
		return nil
	}

	ptr, err := up.mallocAndCopy(len(lights)*sizeofLightProp, lights)
	if err != nil {
		return errors.Wrap(err, "could not upload light list")
	}

	out.Size = uint64(len(lights))
	out.Data = ptr
	return nil
}
