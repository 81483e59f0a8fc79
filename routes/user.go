package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/kataras/iris/v12"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
)

type RegisterUserInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=256"`
	Role      string `json:"role" validate:"required,oneof=organizador proveedor"`
	City      string `json:"city" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=20"`
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Register(ctx iris.Context) {
	var userInput RegisterUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var newUser models.User
	userExists, userExistsErr := getAndHandleUserExists(&newUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if userExists {
		utils.CreateEmailAlreadyRegistered(ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	newUser = models.User{
		FirstName:   userInput.FirstName,
		LastName:    userInput.LastName,
		Email:       strings.ToLower(userInput.Email),
		PhoneNumber: userInput.Phone,
		City:        userInput.City,
		Password:    hashedPassword,
		Role:        userInput.Role,
		SocialLogin: false}

	storage.DB.Create(&newUser)

	returnUser(newUser, ctx)
}

func Login(ctx iris.Context) {
	var userInput LoginUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existingUser models.User
	errorMsg := "Invalid email or password."
	userExists, userExistsErr := getAndHandleUserExists(&existingUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	if existingUser.SocialLogin {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Social Login Account", ctx)
		return
	}

	if existingUser.Active != nil && !*existingUser.Active {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Account deactivated.", ctx)
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	returnUser(existingUser, ctx)
}

type GoogleUserInput struct {
	AccessToken string `json:"accessToken" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=organizador proveedor"`
}

type GoogleUserRes struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// GoogleLoginOrSignUp verifies the Google access token against the userinfo
// endpoint and signs the user in, creating an account on first contact.
func GoogleLoginOrSignUp(ctx iris.Context) {
	var userInput GoogleUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	endpoint := "https://www.googleapis.com/userinfo/v2/me"

	client := &http.Client{}
	req, _ := http.NewRequest("GET", endpoint, nil)
	req.Header.Set("Authorization", "Bearer "+userInput.AccessToken)
	res, googleErr := client.Do(req)
	if googleErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	defer res.Body.Close()
	body, bodyErr := io.ReadAll(res.Body)
	if bodyErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var googleBody GoogleUserRes
	json.Unmarshal(body, &googleBody)

	if googleBody.Email == "" {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid Google token.", ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, googleBody.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		role := userInput.Role
		if role == "" {
			role = models.RoleOrganizer
		}
		user = models.User{
			FirstName:      googleBody.GivenName,
			LastName:       googleBody.FamilyName,
			Email:          strings.ToLower(googleBody.Email),
			SocialLogin:    true,
			SocialProvider: "Google",
			Role:           role,
		}
		storage.DB.Create(&user)

		returnUser(user, ctx)
		return
	}

	if user.SocialLogin && user.SocialProvider == "Google" {
		returnUser(user, ctx)
		return
	}

	utils.CreateEmailAlreadyRegistered(ctx)
}

type GoogleIDTokenInput struct {
	IdentityToken string `json:"identityToken" validate:"required"`
}

// GoogleIDTokenLogin verifies a Google-signed ID token against Google's JWKS
// instead of calling the userinfo endpoint. Used by clients that only hold
// the identity token.
func GoogleIDTokenLogin(ctx iris.Context) {
	var userInput GoogleIDTokenInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	res, httpErr := http.Get("https://www.googleapis.com/oauth2/v3/certs")
	if httpErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	defer res.Body.Close()

	body, bodyErr := io.ReadAll(res.Body)
	if bodyErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	jwks, jwksErr := keyfunc.NewJSON(body)
	if jwksErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	token, tokenErr := jwt.Parse(userInput.IdentityToken, jwks.Keyfunc)
	if tokenErr != nil || !token.Valid {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid user token.", ctx)
		return
	}

	email := fmt.Sprint(token.Claims.(jwt.MapClaims)["email"])
	if email == "" || email == "<nil>" {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Token carries no email.", ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		user = models.User{Email: strings.ToLower(email), SocialLogin: true, SocialProvider: "Google", Role: models.RoleOrganizer}
		storage.DB.Create(&user)

		returnUser(user, ctx)
		return
	}

	if user.SocialLogin && user.SocialProvider == "Google" {
		returnUser(user, ctx)
		return
	}

	utils.CreateEmailAlreadyRegistered(ctx)
}

func GetUser(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "User not authenticated.", ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "user": &user})
}

type UpdateProfileInput struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=20"`
	Bio       string `json:"bio" validate:"max=2000"`
	City      string `json:"city" validate:"max=100"`
	Address   string `json:"address" validate:"max=300"`
	AvatarURL string `json:"avatarURL" validate:"max=500"`
	Document  string `json:"document" validate:"max=20"`
}

func UpdateProfile(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input UpdateProfileInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if input.FirstName != "" {
		user.FirstName = input.FirstName
	}
	if input.LastName != "" {
		user.LastName = input.LastName
	}
	if input.Phone != "" {
		user.PhoneNumber = input.Phone
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}
	if input.City != "" {
		user.City = input.City
	}
	if input.Address != "" {
		user.Address = input.Address
	}
	if input.AvatarURL != "" {
		user.AvatarURL = input.AvatarURL
	}
	if input.Document != "" {
		user.Document = input.Document
	}

	storage.DB.Save(&user)
	ctx.JSON(iris.Map{"success": true, "user": &user})
}

// DeactivateAccount soft-disables the account. Records are never hard
// deleted; contracts and reviews keep pointing at the user row.
func DeactivateAccount(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	inactive := false
	user.Active = &inactive
	storage.DB.Save(&user)

	ctx.JSON(iris.Map{"success": true, "message": "Account deactivated"})
}

type PushTokenInput struct {
	Token string `json:"token" validate:"required"`
}

// RegisterPushToken appends a push token to the user's token list.
func RegisterPushToken(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input PushTokenInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var tokens []string
	if user.PushTokens != nil {
		json.Unmarshal(user.PushTokens, &tokens)
	}
	if !slices.Contains(tokens, input.Token) {
		tokens = append(tokens, input.Token)
	}

	raw, marshalErr := json.Marshal(tokens)
	if marshalErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	user.PushTokens = raw
	storage.DB.Save(&user)

	ctx.JSON(iris.Map{"success": true})
}

type NotificationSettingsInput struct {
	Email *bool `json:"email"`
	Push  *bool `json:"push"`
}

func UpdateNotificationSettings(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input NotificationSettingsInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if input.Email != nil {
		user.EmailNotifications = input.Email
	}
	if input.Push != nil {
		user.PushNotifications = input.Push
	}
	storage.DB.Save(&user)

	ctx.JSON(iris.Map{
		"success":            true,
		"emailNotifications": user.EmailNotifications,
		"pushNotifications":  user.PushNotifications,
	})
}

func getAndHandleUserExists(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := storage.DB.Where("email = ?", strings.ToLower(email)).Limit(1).Find(&user)

	if userExistsQuery.Error != nil {
		return false, userExistsQuery.Error
	}

	return userExistsQuery.RowsAffected > 0, nil
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func returnUser(user models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	now := time.Now().UTC()
	storage.DB.Model(&user).Update("updated_at", now)

	ctx.JSON(iris.Map{
		"ID":           user.ID,
		"firstName":    user.FirstName,
		"lastName":     user.LastName,
		"email":        user.Email,
		"phoneNumber":  user.PhoneNumber,
		"role":         user.Role,
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}
