package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thread/models"
)

var seedCategories = []string{
	"aerospace", "defense", "education", "energy", "financial services",
	"government", "healthcare", "legal", "manufacturing", "media",
	"retail", "technology", "telecommunications", "transportation",
}

var seedRegions = []string{
	"Africa", "Central America", "Central Asia", "East Asia",
	"Eastern Europe", "Middle East", "North America", "Oceania",
	"South America", "South Asia", "Southeast Asia", "Western Europe",
}

var seedCountries = []models.Country{
	{Code: "au", Name: "Australia"},
	{Code: "br", Name: "Brazil"},
	{Code: "ca", Name: "Canada"},
	{Code: "cn", Name: "China"},
	{Code: "de", Name: "Germany"},
	{Code: "fr", Name: "France"},
	{Code: "gb", Name: "United Kingdom"},
	{Code: "il", Name: "Israel"},
	{Code: "in", Name: "India"},
	{Code: "ir", Name: "Iran"},
	{Code: "jp", Name: "Japan"},
	{Code: "kp", Name: "North Korea"},
	{Code: "kr", Name: "South Korea"},
	{Code: "pk", Name: "Pakistan"},
	{Code: "ru", Name: "Russia"},
	{Code: "sa", Name: "Saudi Arabia"},
	{Code: "ua", Name: "Ukraine"},
	{Code: "us", Name: "United States"},
	{Code: "vn", Name: "Vietnam"},
}

func seedCodeTables(db *gorm.DB) error {
	for _, name := range seedCategories {
		row := models.Category{Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	for _, name := range seedRegions {
		row := models.Region{Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	for _, c := range seedCountries {
		row := c
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
