package registry

import "spendtrack/internal/core"

// IncomeCategoryID is the reserved id of the Income pseudo-category.
const IncomeCategoryID int64 = 10

// defaultCategories are present for every user, in this order.
var defaultCategories = []core.Category{
	{ID: 1, Name: "Food", Icon: "fast-food", Color: "#FF6B6B", IsDefault: true},
	{ID: 2, Name: "Transport", Icon: "car", Color: "#4ECDC4", IsDefault: true},
	{ID: 3, Name: "Shopping", Icon: "cart", Color: "#45B7D1", IsDefault: true},
	{ID: 4, Name: "Bills", Icon: "receipt", Color: "#96CEB4", IsDefault: true},
	{ID: 5, Name: "Entertainment", Icon: "film", Color: "#FFEAA7", IsDefault: true},
	{ID: 6, Name: "Health", Icon: "medkit", Color: "#DDA0DD", IsDefault: true},
	{ID: 7, Name: "Education", Icon: "school", Color: "#98D8C8", IsDefault: true},
	{ID: 8, Name: "Housing", Icon: "home", Color: "#F7DC6F", IsDefault: true},
	{ID: 9, Name: "Others", Icon: "ellipsis-horizontal", Color: "#BDC3C7", IsDefault: true},
	{ID: IncomeCategoryID, Name: "Income", Icon: "cash", Color: "#2ECC71", IsDefault: true},
}

// Defaults returns a copy of the built-in categories.
func Defaults() []core.Category {
	return append([]core.Category(nil), defaultCategories...)
}

func isDefaultID(id int64) bool {
	for _, c := range defaultCategories {
		if c.ID == id {
			return true
		}
	}
	return false
}
