package recipe

import "github.com/hammamikhairi/ottonav/internal/domain"

func builtin() []*domain.Recipe {
	return []*domain.Recipe{
		oyakodon(),
		chickenAlfredo(),
		vegetableStirFry(),
	}
}

func oyakodon() *domain.Recipe {
	return &domain.Recipe{
		ID:          "oyakodon",
		Name:        "親子丼",
		Description: "鶏肉と卵をだしで煮て、ご飯にのせる丼。",
		Tags:        []string{"japanese", "chicken", "rice", "quick"},
		Steps: []domain.Step{
			{Title: "下ごしらえ", NarrationText: "鶏もも肉を一口大に切り、玉ねぎを薄切りにします。"},
			{Title: "煮汁", NarrationText: "小さなフライパンに、だし、しょうゆ、みりん、砂糖を入れて中火にかけます。"},
			{Title: "煮る", NarrationText: "玉ねぎと鶏肉を入れ、鶏肉に火が通るまで五分ほど煮ます。"},
			{Title: "卵", NarrationText: "溶き卵を回し入れ、ふたをして三十秒ほど火を通します。卵は半熟で止めてください。"},
			{Title: "盛り付け", NarrationText: "温かいご飯にのせ、三つ葉を添えて出来上がりです。"},
		},
	}
}

func chickenAlfredo() *domain.Recipe {
	return &domain.Recipe{
		ID:          "chicken-alfredo",
		Name:        "Chicken Alfredo",
		Description: "Creamy spaghetti alfredo with pan-seared chicken.",
		Tags:        []string{"italian", "pasta", "chicken", "comfort"},
		Steps: []domain.Step{
			{Title: "Boil water", NarrationText: "Bring a large pot of salted water to a boil for the pasta. It should taste like the sea."},
			{Title: "Season chicken", NarrationText: "While the water heats, season the chicken breasts with salt and pepper and pound them to an even thickness."},
			{Title: "Sear chicken", NarrationText: "Heat olive oil in a skillet over medium-high heat. Sear the chicken about six minutes per side until golden, then let it rest."},
			{Title: "Cook pasta", NarrationText: "Drop the spaghetti into the boiling water and cook until al dente. Reserve a cup of pasta water before draining."},
			{Title: "Garlic", NarrationText: "In the same skillet, melt the butter over medium heat. Add minced garlic and cook for about one minute until fragrant."},
			{Title: "Reduce cream", NarrationText: "Stir in the creme fraiche and let it simmer for about three minutes until it thickens slightly."},
			{Title: "Cheese", NarrationText: "Take the pan off the heat and stir in the gruyere until smooth. Loosen with pasta water if it is too thick."},
			{Title: "Serve", NarrationText: "Slice the chicken, toss the pasta in the sauce, top with the chicken and serve immediately."},
		},
	}
}

func vegetableStirFry() *domain.Recipe {
	return &domain.Recipe{
		ID:          "vegetable-stir-fry",
		Name:        "Vegetable Stir Fry",
		Description: "Fast, crunchy, and customizable. The key is a screaming hot pan.",
		Tags:        []string{"asian", "vegetables", "quick", "vegan", "healthy"},
		Steps: []domain.Step{
			{Title: "Rice", NarrationText: "If serving with rice, start the rice first."},
			{Title: "Prep", NarrationText: "Slice the bell pepper, cut the broccoli into small florets, julienne the carrot and trim the snap peas. Mince the garlic and grate the ginger."},
			{Title: "Sauce", NarrationText: "Mix soy sauce, sesame oil and cornstarch with two tablespoons of water. Set it aside."},
			{Title: "Heat the wok", NarrationText: "Heat your wok on high until it just starts to smoke. Add vegetable oil and swirl to coat."},
			{Title: "Stir-fry", NarrationText: "Add broccoli and carrots for two minutes, then bell pepper and snap peas for two more. Let things char."},
			{Title: "Aromatics", NarrationText: "Push the vegetables aside, add garlic and ginger to the center for thirty seconds, then toss everything together."},
			{Title: "Glaze", NarrationText: "Pour the sauce over everything and toss for thirty seconds until glossy."},
			{Title: "Serve", NarrationText: "Serve immediately over rice."},
		},
	}
}
