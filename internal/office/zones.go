package office

// Zone is a named region of the map used for movement analytics.
type Zone string

const (
	ZoneSpawn       Zone = "spawn"
	ZoneNPCArea     Zone = "npc_area"
	ZoneSocialArea  Zone = "social_area"
	ZoneExploration Zone = "exploration"
)

type zoneBounds struct {
	zone       Zone
	minX, maxX float64
	minY, maxY float64
}

// checked in order; bounds are inclusive and the first match wins
var zones = []zoneBounds{
	{ZoneSpawn, 0, 200, 0, 200},
	{ZoneNPCArea, 400, 600, 300, 500},
	{ZoneSocialArea, 200, 400, 200, 400},
}

// ZoneAt returns the zone containing (x, y), or ZoneExploration.
func ZoneAt(x, y float64) Zone {
	for _, z := range zones {
		if x >= z.minX && x <= z.maxX && y >= z.minY && y <= z.maxY {
			return z.zone
		}
	}
	return ZoneExploration
}
