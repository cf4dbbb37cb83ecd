package models

import "time"

const (
	PetFeedCost        = 10
	FeedHappinessGain  = 10
	FeedHungerRelief   = 20
	MaxPetStat         = 100
	ExperiencePerLevel = 100

	InitialHappiness = 100
	InitialHunger    = 50

	// Hourly decay
	HungerDecayStep     = 5
	StarvingThreshold   = 80
	StarvingUnhappiness = 10
)

// PetType is the species of a virtual pet
type PetType string

const (
	PetCat    PetType = "cat"
	PetDog    PetType = "dog"
	PetDragon PetType = "dragon"
	PetRobot  PetType = "robot"
	PetOwl    PetType = "owl"
	PetFox    PetType = "fox"
)

// PetTypes lists every adoptable pet type
var PetTypes = []PetType{PetCat, PetDog, PetDragon, PetRobot, PetOwl, PetFox}

// Valid reports whether t is an adoptable pet type
func (t PetType) Valid() bool {
	for _, v := range PetTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Pet is a user's virtual pet. A user has at most one.
type Pet struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	PetType    PetType    `json:"petType"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Experience int        `json:"experience"`
	Happiness  int        `json:"happiness"`
	Hunger     int        `json:"hunger"`
	LastFed    *time.Time `json:"lastFed"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// LevelForExperience returns the pet level for an experience total
func LevelForExperience(experience int) int {
	if experience < 0 {
		return 1
	}
	return 1 + experience/ExperiencePerLevel
}
