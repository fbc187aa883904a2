package pii

import "github.com/hannes/idshield/geometry"

// Fallback templates place guaranteed masks over the critical fields of a
// national ID card when detection finds nothing. The slots are defined in a
// reference frame and scaled to the actual image, with a coarse aspect-ratio
// heuristic choosing between the landscape card scan and the portrait phone
// photo layout. A document is never returned unmasked merely because
// detection failed.

type fallbackSlot struct {
	text string
	typ  string
	box  geometry.Box
}

const (
	landscapeRefWidth  = 1000
	landscapeRefHeight = 700
	portraitRefWidth   = 700
	portraitRefHeight  = 1000
)

var landscapeSlots = []fallbackSlot{
	{text: "NAME", typ: TypePerson, box: geometry.Box{X: 250, Y: 350, Width: 400, Height: 50}},
	{text: "ID-NUMBER", typ: TypeNationalID, box: geometry.Box{X: 400, Y: 650, Width: 350, Height: 60}},
	{text: "DOB", typ: TypeDateTime, box: geometry.Box{X: 250, Y: 420, Width: 300, Height: 60}},
	{text: "ADDRESS", typ: TypeLocation, box: geometry.Box{X: 250, Y: 480, Width: 400, Height: 80}},
	{text: "ID-NUMBER-SMALL", typ: TypeNationalID, box: geometry.Box{X: 750, Y: 450, Width: 200, Height: 40}},
}

var portraitSlots = []fallbackSlot{
	{text: "NAME", typ: TypePerson, box: geometry.Box{X: 150, Y: 450, Width: 420, Height: 55}},
	{text: "ID-NUMBER", typ: TypeNationalID, box: geometry.Box{X: 180, Y: 860, Width: 380, Height: 60}},
	{text: "DOB", typ: TypeDateTime, box: geometry.Box{X: 150, Y: 530, Width: 320, Height: 55}},
	{text: "ADDRESS", typ: TypeLocation, box: geometry.Box{X: 150, Y: 600, Width: 440, Height: 120}},
}

// FallbackEntities returns the high-confidence placeholder entities for an
// image of the given dimensions, covering at least the name, national ID
// number, date of birth and address slots. The result is tier-classified
// downstream like any detected entity.
func FallbackEntities(imageWidth, imageHeight int) []Entity {
	slots := landscapeSlots
	refW, refH := landscapeRefWidth, landscapeRefHeight
	if imageHeight > imageWidth {
		slots = portraitSlots
		refW, refH = portraitRefWidth, portraitRefHeight
	}

	entities := make([]Entity, 0, len(slots))
	for _, slot := range slots {
		entities = append(entities, Entity{
			Text:       slot.text,
			Type:       slot.typ,
			Confidence: 1.0,
			Box:        scaleBox(slot.box, refW, refH, imageWidth, imageHeight),
		})
	}
	return entities
}

func scaleBox(b geometry.Box, refW, refH, imgW, imgH int) geometry.Box {
	if refW == 0 || refH == 0 {
		return b
	}
	return geometry.Box{
		X:      b.X * imgW / refW,
		Y:      b.Y * imgH / refH,
		Width:  b.Width * imgW / refW,
		Height: b.Height * imgH / refH,
	}
}
