package store

const imageBase = "https://assets.tcgdex.net/en"

var (
	setBaseSet  = SetBrief{ID: "base1", Name: "Base Set", CardCount: &CardCount{Total: 102, Official: 102}}
	setJungle   = SetBrief{ID: "base2", Name: "Jungle", CardCount: &CardCount{Total: 64, Official: 64}}
	setDarkness = SetBrief{ID: "swsh3", Name: "Darkness Ablaze", CardCount: &CardCount{Total: 201, Official: 189}}
	setEvolving = SetBrief{ID: "swsh7", Name: "Evolving Skies", CardCount: &CardCount{Total: 237, Official: 203}}
)

// DefaultCatalog returns the sample cards served by a fresh backend.
func DefaultCatalog() []Card {
	return []Card{
		card(setBaseSet, "58", "Pikachu", "Common", 40, "Lightning", "Basic", ""),
		card(setBaseSet, "44", "Bulbasaur", "Common", 40, "Grass", "Basic", ""),
		card(setBaseSet, "4", "Charizard", "Rare Holo", 120, "Fire", "Stage2", "Charmeleon"),
		card(setBaseSet, "46", "Charmander", "Common", 50, "Fire", "Basic", ""),
		card(setBaseSet, "2", "Blastoise", "Rare Holo", 100, "Water", "Stage2", "Wartortle"),
		card(setJungle, "60", "Pikachu", "Common", 50, "Lightning", "Basic", ""),
		card(setJungle, "1", "Clefable", "Rare Holo", 70, "Colorless", "Stage1", "Clefairy"),
		card(setDarkness, "136", "Furret", "Uncommon", 110, "Colorless", "Stage1", "Sentret"),
		card(setDarkness, "20", "Charizard VMAX", "Rare Holo VMAX", 330, "Fire", "VMAX", "Charizard V"),
		card(setEvolving, "218", "Rayquaza VMAX", "Secret Rare", 320, "Dragon", "VMAX", "Rayquaza V"),
		card(setEvolving, "49", "Pikachu", "Common", 70, "Lightning", "Basic", ""),
	}
}

func card(set SetBrief, localID, name, rarity string, hp int, typ, stage, evolveFrom string) Card {
	id := set.ID + "-" + localID
	return Card{
		ID:         id,
		LocalID:    localID,
		Name:       name,
		Image:      imageBase + "/" + set.ID + "/" + localID,
		Category:   "Pokemon",
		Rarity:     rarity,
		Set:        set,
		HP:         hp,
		Types:      []string{typ},
		Stage:      stage,
		EvolveFrom: evolveFrom,
	}
}
