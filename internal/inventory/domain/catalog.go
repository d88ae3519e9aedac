package domain

// Category classifies an item at the top level.
type Category string

const (
	CategoryAntacids              Category = "Antacids"
	CategoryCoughAndCold          Category = "Cough and Cold"
	CategoryDigestiveHealth       Category = "Digestive Health"
	CategoryEyeCare               Category = "Eye Care"
	CategoryMedicalSupplies       Category = "Medical Supplies & Personal Care"
	CategoryMedicalSuppliesAlt    Category = "Medical Supplies and Personal Care Products"
	CategoryOTCMedicines          Category = "Over-the-Counter (OTC) Medicines"
	CategoryPainRelievers         Category = "Pain Relievers"
	CategoryPharmacyEquipment     Category = "Pharmacy Machineries and Equipment"
	CategoryPrescriptionMedicines Category = "Prescription Medicines"
	CategorySkinCare              Category = "Skin Care"
	CategoryTopicalTreatments     Category = "Topical Treatments"
	CategoryVitaminsSupplements   Category = "Vitamins and Supplements"
)

// UnitType is the unit an item's size is counted in.
type UnitType string

const (
	UnitML       UnitType = "ml"
	UnitEach     UnitType = "Each"
	UnitPack     UnitType = "Pack"
	UnitGrams    UnitType = "g"
	UnitPacks    UnitType = "Packs"
	UnitRolls    UnitType = "Rolls"
	UnitTubes    UnitType = "Tubes"
	UnitBottles  UnitType = "Bottles"
	UnitBars     UnitType = "Bars"
	UnitKits     UnitType = "Kits"
	UnitTablets  UnitType = "Tablets"
	UnitUnits    UnitType = "Units"
	UnitCapsules UnitType = "Capsules"
	UnitVials    UnitType = "Vials"
	UnitSoftgels UnitType = "Softgels"
	UnitTablet   UnitType = "Tablet"
)

// Packaging describes how an item is packed.
type Packaging string

const (
	PackagingBottle       Packaging = "bottle"
	PackagingBlisterPack  Packaging = "blister_pack"
	PackagingBox          Packaging = "box"
	PackagingPack         Packaging = "pack"
	PackagingRoll         Packaging = "roll"
	PackagingTube         Packaging = "tube"
	PackagingBar          Packaging = "bar"
	PackagingOneBox       Packaging = "1_box"
	PackagingHundredPack  Packaging = "100_per_pack"
	PackagingOneRoll      Packaging = "1_roll"
	PackagingOneTube      Packaging = "1_tube"
	PackagingOneBottle    Packaging = "1_bottle"
	PackagingOneBar       Packaging = "1_bar"
	PackagingOneKit       Packaging = "1_kit"
	PackagingTwentyBottle Packaging = "20_per_bottle"
	PackagingHundredMLBtl Packaging = "100ml_bottle"
	PackagingTenBlister   Packaging = "10_per_blister"
	PackagingOneUnit      Packaging = "1_unit"
	PackagingSixBlister   Packaging = "6_per_blister"
	PackagingTenMLVial    Packaging = "10ml_vial"
	PackagingJar          Packaging = "jar"
	PackagingThirtyBottle Packaging = "30_per_bottle"
	PackagingSixtyBottle  Packaging = "60_per_bottle"
)

var categories = setOf(
	CategoryAntacids, CategoryCoughAndCold, CategoryDigestiveHealth, CategoryEyeCare,
	CategoryMedicalSupplies, CategoryMedicalSuppliesAlt, CategoryOTCMedicines,
	CategoryPainRelievers, CategoryPharmacyEquipment, CategoryPrescriptionMedicines,
	CategorySkinCare, CategoryTopicalTreatments, CategoryVitaminsSupplements,
)

var unitTypes = setOf(
	UnitML, UnitEach, UnitPack, UnitGrams, UnitPacks, UnitRolls, UnitTubes, UnitBottles,
	UnitBars, UnitKits, UnitTablets, UnitUnits, UnitCapsules, UnitVials, UnitSoftgels, UnitTablet,
)

var packagings = setOf(
	PackagingBottle, PackagingBlisterPack, PackagingBox, PackagingPack, PackagingRoll,
	PackagingTube, PackagingBar, PackagingOneBox, PackagingHundredPack, PackagingOneRoll,
	PackagingOneTube, PackagingOneBottle, PackagingOneBar, PackagingOneKit,
	PackagingTwentyBottle, PackagingHundredMLBtl, PackagingTenBlister, PackagingOneUnit,
	PackagingSixBlister, PackagingTenMLVial, PackagingJar, PackagingThirtyBottle,
	PackagingSixtyBottle,
)

var subcategories = setOf(
	"Antacid", "Decongestants", "Expectorants", "Antihistamines", "Antitussives",
	"Laxatives", "Lubricating Drops", "First Aid Supplies", "Personal Hygiene", "Skin Care",
	"Incontinence Care", "Baby Care", "Eye Care", "Medical Supplies", "Bandages and Dressings",
	"First Aid Kits", "Pain Relievers", "Cough and Cold Remedies", "Analgesics",
	"Blood Pressure Monitors", "Thermometers", "Nebulizers", "Oxygen Equipment",
	"Pulse Oximeters", "Surgical Instruments", "Antibiotics", "Antihypertensives",
	"Anti-Diabetic Medications", "Sunscreen", "Moisturizer", "Acne Treatment", "Anti-fungal",
	"Anti-inflammatory", "Pain Relief", "Multivitamins", "Vitamin C", "Omega-3 Fatty Acids",
	"Iron Supplements", "Vitamin D", "Vitamin B Complex", "Vitamin E", "Calcium", "Iron",
	"Omega-3", "Probiotics", "Herbal Supplements", "Joint Health", "Energy & Endurance",
)

func setOf[T ~string](values ...T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (u UnitType) Valid() bool {
	_, ok := unitTypes[u]
	return ok
}

func (p Packaging) Valid() bool {
	_, ok := packagings[p]
	return ok
}

// ValidSubcategory reports whether s is a known subcategory. Subcategories
// are not tied to a particular category.
func ValidSubcategory(s string) bool {
	_, ok := subcategories[s]
	return ok
}
