package darna

// SearchQuery holds the optional listing filters shared by the search
// endpoint and the saved-search alert scan. Zero values mean "no filter".
type SearchQuery struct {
	Q            string
	City         string
	DealType     string
	PropertyType string
	Source       string
	Status       string
	MinPrice     *float64
	MaxPrice     *float64
	MinRooms     *int
	MaxRooms     *int
}

// Validate rejects values outside their enumerated or numeric constraints.
// Absent values pass.
func (q SearchQuery) Validate() error {
	if q.DealType != "" && !DealType(q.DealType).Valid() {
		return ValidationError{Field: "deal_type", Reason: "must be rent or sale"}
	}
	if q.PropertyType != "" && !PropertyType(q.PropertyType).Valid() {
		return ValidationError{Field: "property_type", Reason: "unknown property type"}
	}
	if q.Source != "" && !Source(q.Source).Valid() {
		return ValidationError{Field: "source", Reason: "unknown source"}
	}
	if q.Status != "" && !Status(q.Status).Valid() {
		return ValidationError{Field: "status", Reason: "must be pending, approved or rejected"}
	}
	if q.MinPrice != nil && *q.MinPrice < 0 {
		return ValidationError{Field: "min_price", Reason: "must be non-negative"}
	}
	if q.MaxPrice != nil && *q.MaxPrice < 0 {
		return ValidationError{Field: "max_price", Reason: "must be non-negative"}
	}
	if q.MinRooms != nil && *q.MinRooms < 0 {
		return ValidationError{Field: "min_rooms", Reason: "must be non-negative"}
	}
	if q.MaxRooms != nil && *q.MaxRooms < 0 {
		return ValidationError{Field: "max_rooms", Reason: "must be non-negative"}
	}
	return nil
}

// Filter builds the store filter document. q searches title, description
// and city case-insensitively; city matches its own field the same way;
// price and bedrooms become range filters; the enums match exactly.
func (q SearchQuery) Filter() Doc {
	filter := Doc{}

	if q.City != "" {
		filter["city"] = Doc{"$regex": q.City, "$options": "i"}
	}
	if q.DealType != "" {
		filter["deal_type"] = q.DealType
	}
	if q.PropertyType != "" {
		filter["property_type"] = q.PropertyType
	}
	if q.Source != "" {
		filter["source"] = q.Source
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	price := Doc{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	rooms := Doc{}
	if q.MinRooms != nil {
		rooms["$gte"] = *q.MinRooms
	}
	if q.MaxRooms != nil {
		rooms["$lte"] = *q.MaxRooms
	}
	if len(rooms) > 0 {
		filter["bedrooms"] = rooms
	}

	if q.Q != "" {
		filter["$or"] = []Doc{
			{"title": Doc{"$regex": q.Q, "$options": "i"}},
			{"description": Doc{"$regex": q.Q, "$options": "i"}},
			{"city": Doc{"$regex": q.Q, "$options": "i"}},
		}
	}

	return filter
}
