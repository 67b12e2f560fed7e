package catalog

import "github.com/shopspring/decimal"

func rp(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// DefaultMenu is the starter cafe menu loaded by `pos-service seed`.
var DefaultMenu = []SeedCategory{
	{
		Name: "Kopi",
		Items: []SeedItem{
			{"Espresso", rp(15000), "Kopi hitam pekat"},
			{"Americano", rp(18000), "Espresso dengan air panas"},
			{"Cappuccino", rp(22000), "Espresso dengan susu dan foam"},
			{"Latte", rp(25000), "Espresso dengan susu steamed"},
			{"Mocha", rp(28000), "Latte dengan cokelat"},
		},
	},
	{
		Name: "Makanan Ringan",
		Items: []SeedItem{
			{"Croissant", rp(15000), "Pastry mentega berlapis"},
			{"Sandwich Club", rp(35000), "Sandwich dengan ayam dan sayuran"},
			{"Muffin Blueberry", rp(18000), "Muffin dengan blueberry segar"},
			{"Cookies Choco Chip", rp(12000), "Kue kering cokelat chip"},
			{"Cake Slice Red Velvet", rp(25000), "Potongan kue red velvet"},
		},
	},
	{
		Name: "Non-Kopi",
		Items: []SeedItem{
			{"Teh Tarik", rp(12000), "Teh dengan susu"},
			{"Chocolate Ice", rp(20000), "Minuman cokelat dingin"},
			{"Lemon Tea", rp(15000), "Teh dengan lemon segar"},
			{"Milkshake Vanilla", rp(25000), "Milkshake rasa vanilla"},
			{"Fresh Orange Juice", rp(18000), "Jus jeruk segar"},
		},
	},
}
